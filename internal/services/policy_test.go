package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhqtran/coingains/internal/models"
)

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"fifo", "lifo", "highest_cost", "lowest_cost", "specific_id"} {
		p, err := ParsePolicy(name)
		require.NoError(t, err)
		assert.Equal(t, Policy(name), p)
	}

	_, err := ParsePolicy("hifo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lot selection policy")
}

func orderLots() []*models.Lot {
	return []*models.Lot{
		{ID: "a", AcquiredAt: day(1), RemainingAmount: dec("1"), UnitCostBasis: dec("300")},
		{ID: "b", AcquiredAt: day(2), RemainingAmount: dec("1"), UnitCostBasis: dec("100")},
		{ID: "c", AcquiredAt: day(3), RemainingAmount: dec("1"), UnitCostBasis: dec("200")},
	}
}

func lotIDs(lots []*models.Lot) []string {
	ids := make([]string, len(lots))
	for i, lot := range lots {
		ids[i] = lot.ID
	}
	return ids
}

func TestSelectionOrder(t *testing.T) {
	tests := []struct {
		policy   Policy
		specific []string
		want     []string
	}{
		{PolicyFIFO, nil, []string{"a", "b", "c"}},
		{PolicyLIFO, nil, []string{"c", "b", "a"}},
		{PolicyHighestCost, nil, []string{"a", "c", "b"}},
		{PolicyLowestCost, nil, []string{"b", "c", "a"}},
		{PolicySpecificID, []string{"c", "a"}, []string{"c", "a", "b"}},
		// Unknown ids are skipped, remainder falls back to FIFO.
		{PolicySpecificID, []string{"zzz", "b"}, []string{"b", "a", "c"}},
		{PolicySpecificID, nil, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := selectionOrder(orderLots(), tt.policy, tt.specific)
		assert.Equal(t, tt.want, lotIDs(got), "policy %s", tt.policy)
	}
}

func TestSelectionOrderDoesNotMutateInput(t *testing.T) {
	lots := orderLots()
	selectionOrder(lots, PolicyLIFO, nil)
	assert.Equal(t, []string{"a", "b", "c"}, lotIDs(lots))
}

func TestSelectionOrderCostTiesKeepAcquisitionOrder(t *testing.T) {
	lots := []*models.Lot{
		{ID: "a", AcquiredAt: day(1), RemainingAmount: dec("1"), UnitCostBasis: dec("100")},
		{ID: "b", AcquiredAt: day(2), RemainingAmount: dec("1"), UnitCostBasis: dec("100")},
	}
	got := selectionOrder(lots, PolicyHighestCost, nil)
	assert.Equal(t, []string{"a", "b"}, lotIDs(got))
}
