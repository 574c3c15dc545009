package rewrite

import (
	"math"
	"strings"
)

const overlapWindow = 3

// Score estimates how different a rewritten body is from its source on
// a 0..100 scale. It returns 0 when the comparison is uncomputable:
// either input empty, or no CJK ideographs in the original.
func Score(original, rewritten string) int {
	if original == "" || rewritten == "" {
		return 0
	}

	origCount := countCJK(original)
	newCount := countCJK(rewritten)
	if origCount == 0 {
		return 0
	}

	ratio := math.Abs(float64(newCount-origCount)) / float64(origCount)
	lengthScore := 20
	switch {
	case ratio <= 0.2:
		lengthScore = 40
	case ratio <= 0.4:
		lengthScore = 30
	}

	overlapRate := windowOverlapRate(original, rewritten, origCount)
	overlapScore := int(math.Round((1 - overlapRate) * 60))

	score := lengthScore + overlapScore
	if score > 100 {
		score = 100
	}
	return score
}

// countCJK counts runes in the CJK Unified Ideographs blocks, including
// Extension A and the compatibility block.
func countCJK(s string) int {
	n := 0
	for _, r := range s {
		if isCJK(r) {
			n++
		}
	}
	return n
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0xF900 && r <= 0xFAFF:
		return true
	}
	return false
}

// windowOverlapRate slides a fixed-size rune window across the original
// and counts windows that appear verbatim in the rewrite. The rate is
// normalized by the original's CJK count, matching the length metric.
func windowOverlapRate(original, rewritten string, origCount int) float64 {
	runes := []rune(original)
	if len(runes) < overlapWindow {
		return 0
	}
	overlap := 0
	for i := 0; i+overlapWindow <= len(runes); i++ {
		if strings.Contains(rewritten, string(runes[i:i+overlapWindow])) {
			overlap++
		}
	}
	rate := float64(overlap) / float64(origCount)
	if rate > 1 {
		rate = 1
	}
	return rate
}
