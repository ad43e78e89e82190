// Package report reshapes activity collections into the breakdowns
// and goal-progress figures the dashboard renders. Like schedule, it
// is side-effect free: results are always recomputed from the rows
// handed in, never cached.
package report

import (
	"math"
	"sort"
	"strings"
)

// FallbackLabel buckets rows whose grouping field is empty or
// whitespace. One consistent label, matching what the UI displays.
const FallbackLabel = "Não informado"

type Group struct {
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// Aggregate groups items by keyFn and returns counts with rounded
// percentages, largest group first, ties kept in first-encountered
// order. An empty input yields an empty (non-nil) slice.
func Aggregate[T any](items []T, keyFn func(T) string) []Group {
	groups := []Group{}
	if len(items) == 0 {
		return groups
	}
	index := make(map[string]int)
	for _, item := range items {
		label := strings.TrimSpace(keyFn(item))
		if label == "" {
			label = FallbackLabel
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Count++
	}
	total := len(items)
	for i := range groups {
		groups[i].Percentage = roundPercent(groups[i].Count, total)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
	return groups
}

func roundPercent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
