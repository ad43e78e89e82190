package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

func TestAggregateSortsByCountDesc(t *testing.T) {
	got := Aggregate([]string{"A", "A", "B", "C", "C", "C"}, identity)
	want := []Group{
		{Label: "C", Count: 3, Percentage: 50},
		{Label: "A", Count: 2, Percentage: 33},
		{Label: "B", Count: 1, Percentage: 17},
	}
	assert.Equal(t, want, got)
}

func TestAggregateTiesKeepEncounterOrder(t *testing.T) {
	got := Aggregate([]string{"X", "Y", "X", "Y", "Z"}, identity)
	require.Len(t, got, 3)
	assert.Equal(t, "X", got[0].Label)
	assert.Equal(t, "Y", got[1].Label)
	assert.Equal(t, "Z", got[2].Label)
}

func TestAggregateFallbackLabel(t *testing.T) {
	got := Aggregate([]string{"", "  ", "Equipe Norte"}, identity)
	require.Len(t, got, 2)
	assert.Equal(t, Group{Label: FallbackLabel, Count: 2, Percentage: 67}, got[0])
	assert.Equal(t, Group{Label: "Equipe Norte", Count: 1, Percentage: 33}, got[1])
}

func TestAggregateEmptyInput(t *testing.T) {
	got := Aggregate(nil, identity)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAggregateCountAndPercentageInvariants(t *testing.T) {
	items := []string{"a", "b", "b", "c", "c", "c", "d", "d", "d", "d", "e"}
	got := Aggregate(items, identity)

	total := 0
	pctSum := 0
	for _, g := range got {
		total += g.Count
		pctSum += g.Percentage
	}
	assert.Equal(t, len(items), total)
	// Rounding can drift by at most one point per group.
	assert.InDelta(t, 100, pctSum, float64(len(got)))
}
