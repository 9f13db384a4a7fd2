package ledger

import (
	"sort"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/models"
	"github.com/shopspring/decimal"
)

// Match is one (lot, quantity consumed from that lot) pair produced by a
// Matcher for a single SELL.
type Match struct {
	Lot      models.PositionLot
	Quantity decimal.Decimal
}

// Matcher allocates a sell quantity across a symbol's active lots. All
// matchers guarantee Σ Quantity == sellQty (within QuantityEpsilon) and
// Quantity <= lot.RemainingQuantity for every returned Match.
type Matcher interface {
	Match(lots []models.PositionLot, sellQty decimal.Decimal) ([]Match, error)
}

// NewMatcher builds the matcher for method. specificLots is only consulted
// for models.SpecificLot and maps lot id -> requested quantity.
func NewMatcher(method models.CostBasisMethod, specificLots map[int64]decimal.Decimal) (Matcher, error) {
	switch method {
	case "", models.FIFO:
		return fifoMatcher{}, nil
	case models.LIFO:
		return lifoMatcher{}, nil
	case models.SpecificLot:
		return specificLotMatcher{requested: specificLots}, nil
	case models.AverageCost:
		return averageCostMatcher{}, nil
	default:
		return nil, apperrors.New(apperrors.Validation, "unknown cost basis method: "+string(method))
	}
}

func totalRemaining(lots []models.PositionLot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.RemainingQuantity)
	}
	return total
}

func checkSufficient(lots []models.PositionLot, sellQty decimal.Decimal) error {
	available := totalRemaining(lots)
	if available.Sub(sellQty).LessThan(models.QuantityEpsilon.Neg()) {
		return apperrors.New(apperrors.InsufficientPosition, "insufficient shares to sell")
	}
	return nil
}

// fifoMatcher consumes the oldest lots first: sort by (purchase_date ASC,
// lot_id ASC), greedy.
type fifoMatcher struct{}

func (fifoMatcher) Match(lots []models.PositionLot, sellQty decimal.Decimal) ([]Match, error) {
	if err := checkSufficient(lots, sellQty); err != nil {
		return nil, err
	}
	sorted := append([]models.PositionLot(nil), lots...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PurchaseDate != sorted[j].PurchaseDate {
			return sorted[i].PurchaseDate < sorted[j].PurchaseDate
		}
		return sorted[i].ID < sorted[j].ID
	})
	return greedyConsume(sorted, sellQty)
}

// lifoMatcher consumes the newest lots first: sort by (purchase_date DESC,
// lot_id DESC), greedy.
type lifoMatcher struct{}

func (lifoMatcher) Match(lots []models.PositionLot, sellQty decimal.Decimal) ([]Match, error) {
	if err := checkSufficient(lots, sellQty); err != nil {
		return nil, err
	}
	sorted := append([]models.PositionLot(nil), lots...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PurchaseDate != sorted[j].PurchaseDate {
			return sorted[i].PurchaseDate > sorted[j].PurchaseDate
		}
		return sorted[i].ID > sorted[j].ID
	})
	return greedyConsume(sorted, sellQty)
}

func greedyConsume(sorted []models.PositionLot, sellQty decimal.Decimal) ([]Match, error) {
	var matches []Match
	remaining := sellQty
	for _, lot := range sorted {
		if remaining.LessThanOrEqual(models.QuantityEpsilon) {
			break
		}
		take := decimal.Min(lot.RemainingQuantity, remaining)
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}
		matches = append(matches, Match{Lot: lot, Quantity: take})
		remaining = remaining.Sub(take)
	}
	if remaining.GreaterThan(models.QuantityEpsilon) {
		return nil, apperrors.New(apperrors.InsufficientPosition, "insufficient shares to sell")
	}
	return matches, nil
}

// specificLotMatcher requires the caller to name exact lots and quantities;
// every named lot must exist in the active set with enough remaining
// quantity, and the requested quantities must sum to exactly sellQty.
type specificLotMatcher struct {
	requested map[int64]decimal.Decimal
}

func (m specificLotMatcher) Match(lots []models.PositionLot, sellQty decimal.Decimal) ([]Match, error) {
	if len(m.requested) == 0 {
		return nil, apperrors.New(apperrors.Validation, "specific-lot sale requires at least one lot")
	}
	byID := make(map[int64]models.PositionLot, len(lots))
	for _, l := range lots {
		byID[l.ID] = l
	}

	var matches []Match
	sum := decimal.Zero
	for lotID, qty := range m.requested {
		lot, ok := byID[lotID]
		if !ok {
			return nil, apperrors.New(apperrors.UnknownLot, "lot not found or not active")
		}
		if qty.LessThanOrEqual(decimal.Zero) {
			return nil, apperrors.New(apperrors.Validation, "specific-lot quantity must be positive")
		}
		if lot.RemainingQuantity.Sub(qty).LessThan(models.QuantityEpsilon.Neg()) {
			return nil, apperrors.New(apperrors.UnknownLot, "lot does not have enough remaining quantity")
		}
		matches = append(matches, Match{Lot: lot, Quantity: qty})
		sum = sum.Add(qty)
	}

	if sum.Sub(sellQty).Abs().GreaterThan(models.QuantityEpsilon) {
		return nil, apperrors.New(apperrors.Validation, "specific-lot quantities do not sum to sell quantity")
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Lot.ID < matches[j].Lot.ID })
	return matches, nil
}

// averageCostMatcher allocates proportionally to each lot's share of total
// remaining quantity. The last lot in iteration order absorbs whatever is
// left after the others round, rather than re-deriving its share from the
// ratio, so the allocations always sum to exactly sellQty.
type averageCostMatcher struct{}

func (averageCostMatcher) Match(lots []models.PositionLot, sellQty decimal.Decimal) ([]Match, error) {
	if err := checkSufficient(lots, sellQty); err != nil {
		return nil, err
	}
	sorted := append([]models.PositionLot(nil), lots...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PurchaseDate != sorted[j].PurchaseDate {
			return sorted[i].PurchaseDate < sorted[j].PurchaseDate
		}
		return sorted[i].ID < sorted[j].ID
	})

	total := totalRemaining(sorted)
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.New(apperrors.InsufficientPosition, "no remaining quantity to allocate")
	}

	var matches []Match
	remaining := sellQty
	for i, lot := range sorted {
		if lot.RemainingQuantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		var take decimal.Decimal
		if i == len(sorted)-1 {
			take = remaining
		} else {
			ratio := lot.RemainingQuantity.Div(total)
			take = sellQty.Mul(ratio).Round(4)
			if take.GreaterThan(lot.RemainingQuantity) {
				take = lot.RemainingQuantity
			}
			if take.GreaterThan(remaining) {
				take = remaining
			}
		}
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}
		matches = append(matches, Match{Lot: lot, Quantity: take})
		remaining = remaining.Sub(take)
	}

	if remaining.Abs().GreaterThan(models.QuantityEpsilon) {
		return nil, apperrors.New(apperrors.InsufficientPosition, "insufficient shares to sell")
	}
	return matches, nil
}
