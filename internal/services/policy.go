package services

import (
	"fmt"
	"sort"

	"github.com/vhqtran/coingains/internal/models"
)

// Policy selects which lots a disposal consumes first.
type Policy string

const (
	PolicyFIFO        Policy = "fifo"
	PolicyLIFO        Policy = "lifo"
	PolicyHighestCost Policy = "highest_cost"
	PolicyLowestCost  Policy = "lowest_cost"
	PolicySpecificID  Policy = "specific_id"
)

// ParsePolicy validates a policy name from config or flags.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(name); p {
	case PolicyFIFO, PolicyLIFO, PolicyHighestCost, PolicyLowestCost, PolicySpecificID:
		return p, nil
	default:
		return "", fmt.Errorf("unknown lot selection policy %q", name)
	}
}

// selectionOrder returns the live lots in the order the policy consumes
// them. The input slice is already oldest-first (ledger invariant), which
// doubles as the tiebreak for the cost-ordered policies. For
// specific-identification, the caller-supplied lot IDs come first and any
// remainder falls back to FIFO.
func selectionOrder(lots []*models.Lot, policy Policy, specific []string) []*models.Lot {
	ordered := make([]*models.Lot, len(lots))
	copy(ordered, lots)

	switch policy {
	case PolicyFIFO:
		// Already oldest first.
	case PolicyLIFO:
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	case PolicyHighestCost:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].UnitCostBasis.GreaterThan(ordered[j].UnitCostBasis)
		})
	case PolicyLowestCost:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].UnitCostBasis.LessThan(ordered[j].UnitCostBasis)
		})
	case PolicySpecificID:
		byID := make(map[string]*models.Lot, len(ordered))
		for _, lot := range ordered {
			byID[lot.ID] = lot
		}
		picked := make([]*models.Lot, 0, len(ordered))
		seen := make(map[string]bool, len(specific))
		for _, id := range specific {
			if lot, ok := byID[id]; ok && !seen[id] {
				picked = append(picked, lot)
				seen[id] = true
			}
		}
		for _, lot := range ordered {
			if !seen[lot.ID] {
				picked = append(picked, lot)
			}
		}
		ordered = picked
	}
	return ordered
}
