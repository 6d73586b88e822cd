package challenge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStatus(t *testing.T) {
	c := &Challenge{
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, StatusUpcoming, c.EffectiveStatus(c.StartDate.Add(-time.Hour)))
	assert.Equal(t, StatusActive, c.EffectiveStatus(c.StartDate))
	assert.Equal(t, StatusActive, c.EffectiveStatus(c.EndDate.Add(-time.Second)))
	assert.Equal(t, StatusCompleted, c.EffectiveStatus(c.EndDate))
	assert.Equal(t, StatusCompleted, c.EffectiveStatus(c.EndDate.Add(24*time.Hour)))
}

func TestGoalProgressIncrement(t *testing.T) {
	cases := []struct {
		target int
		want   int
	}{
		{5, 20},
		{4, 25},
		{3, 33},
		{1, 100},
		{100, 1},
		{0, 0},
		{-1, 0},
	}

	for _, tc := range cases {
		g := &Goal{Target: tc.target}
		assert.Equal(t, tc.want, g.ProgressIncrement(), "target %d", tc.target)
	}

	// A target of 5 reaches exactly 100 after 5 units.
	g := &Goal{Target: 5}
	total := 0
	for i := 0; i < g.Target; i++ {
		total += g.ProgressIncrement()
	}
	assert.Equal(t, 100, total)
}

func TestRuleInputUnmarshal(t *testing.T) {
	var r RuleInput
	require.NoError(t, json.Unmarshal([]byte(`"no smurfing"`), &r))
	assert.Equal(t, "no smurfing", r.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"rule": "one entry per player"}`), &r))
	assert.Equal(t, "one entry per player", r.Text)

	assert.Error(t, json.Unmarshal([]byte(`42`), &r))
}

func TestRuleInputMarshal(t *testing.T) {
	out, err := json.Marshal([]RuleInput{{Text: "be nice"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["be nice"]`, string(out))
}
