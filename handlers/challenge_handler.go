package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"questLogAPI/internal/types/challenge"
	"questLogAPI/middleware"
	"questLogAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var input challenge.CreateChallengeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Printf("CreateChallenge Handler: Failed to decode request body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	detail, err := h.challengeService.CreateChallenge(ctx, clerkID, &input)
	if err != nil {
		log.Printf("CreateChallenge Handler: Service error: %v", err)
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, detail)
}

func (h *ChallengeHandler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.DeleteChallenge(ctx, clerkID, challengeID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Challenge deleted"})
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.challengeService.GetChallenge(ctx, challengeID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.challengeService.ListChallenges(ctx)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) ListJoinedChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challenges, err := h.challengeService.ListJoinedChallenges(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.JoinChallenge(ctx, clerkID, challengeID); err != nil {
		log.Printf("JoinChallenge Handler: Service error: %v", err)
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Joined challenge"})
}

func (h *ChallengeHandler) LeaveChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.LeaveChallenge(ctx, clerkID, challengeID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Left challenge"})
}

func (h *ChallengeHandler) SetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var input challenge.SetProgressInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	participant, err := h.challengeService.SetProgress(ctx, clerkID, challengeID, input.Progress)
	if err != nil {
		log.Printf("SetProgress Handler: Service error: %v", err)
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, participant)
}

func (h *ChallengeHandler) AddProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var input challenge.AddProgressInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goalID, err := uuid.Parse(input.GoalID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goalId")
		return
	}

	participant, err := h.challengeService.AddGoalProgress(ctx, clerkID, challengeID, goalID, input.Steps)
	if err != nil {
		log.Printf("AddProgress Handler: Service error: %v", err)
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, participant)
}

func (h *ChallengeHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rewardID, ok := pathUUID(w, r, "rewardId")
	if !ok {
		return
	}

	if err := h.challengeService.ClaimReward(ctx, clerkID, challengeID, rewardID); err != nil {
		log.Printf("ClaimReward Handler: Service error: %v", err)
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Reward claimed"})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
