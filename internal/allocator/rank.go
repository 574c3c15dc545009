package allocator

import (
	"math"

	"github.com/presswire/rewriter/internal/rewrite"
)

// domainState is one domain's utilization snapshot for a single
// (date, category) group.
type domainState struct {
	Quota            rewrite.DomainQuota
	Assigned         int
	CategoryAssigned int
}

// overallRatio is the fraction of the daily limit already used.
func (s domainState) overallRatio() float64 {
	if s.Quota.DailyLimit <= 0 {
		return 1
	}
	return float64(s.Assigned) / float64(s.Quota.DailyLimit)
}

// categoryRatio is the fraction of today's assignments in this
// category, 0 when nothing has been assigned yet.
func (s domainState) categoryRatio() float64 {
	if s.Assigned == 0 {
		return 0
	}
	return float64(s.CategoryAssigned) / float64(s.Assigned)
}

// pick returns the least-utilized eligible domain for one assignment.
// A domain is eligible while assigned < limit and limit > 0. Candidates
// whose overall ratios differ by at most tieEpsilon are compared on
// category ratio instead, steering the group toward domains carrying
// less of this category. The earliest candidate keeps exact ties.
func pick(states []domainState, tieEpsilon float64) (domainState, bool) {
	var best domainState
	found := false
	for _, s := range states {
		if s.Quota.DailyLimit <= 0 || s.Assigned >= s.Quota.DailyLimit {
			continue
		}
		if !found || lessUtilized(s, best, tieEpsilon) {
			best = s
			found = true
		}
	}
	return best, found
}

func lessUtilized(a, b domainState, tieEpsilon float64) bool {
	ra, rb := a.overallRatio(), b.overallRatio()
	if math.Abs(ra-rb) <= tieEpsilon {
		return a.categoryRatio() < b.categoryRatio()
	}
	return ra < rb
}
