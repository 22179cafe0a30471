// Package book derives volume-weighted average prices from order-book
// levels. All arithmetic is decimal; a book too shallow for the requested
// size yields domain.ErrInsufficientDepth rather than a degraded estimate.
package book

import (
	"github.com/shopspring/decimal"

	"updown_go/internal/domain"
)

// VWAPForShares walks ask levels in priority order and returns the
// size-weighted average price of buying `shares`.
func VWAPForShares(levels []domain.PriceLevel, shares decimal.Decimal) (decimal.Decimal, error) {
	if !shares.IsPositive() {
		return decimal.Zero, domain.ErrInsufficientDepth
	}

	got := decimal.Zero
	cost := decimal.Zero
	for _, lvl := range levels {
		if !lvl.Size.IsPositive() {
			continue
		}
		take := decimal.Min(lvl.Size, shares.Sub(got))
		cost = cost.Add(take.Mul(lvl.Price))
		got = got.Add(take)
		if got.GreaterThanOrEqual(shares) {
			break
		}
	}

	if got.LessThan(shares) {
		return decimal.Zero, domain.ErrInsufficientDepth
	}
	return cost.Div(got), nil
}

// VWAPForNotional walks ask levels and returns the size-weighted average
// price of spending `notional` USD. The last level consumed may be taken
// partially.
func VWAPForNotional(levels []domain.PriceLevel, notional decimal.Decimal) (decimal.Decimal, error) {
	if !notional.IsPositive() {
		return decimal.Zero, domain.ErrInsufficientDepth
	}

	spent := decimal.Zero
	shares := decimal.Zero
	for _, lvl := range levels {
		if !lvl.Price.IsPositive() || !lvl.Size.IsPositive() {
			continue
		}

		remaining := notional.Sub(spent)
		levelCost := lvl.Size.Mul(lvl.Price)
		if levelCost.LessThanOrEqual(remaining) {
			spent = spent.Add(levelCost)
			shares = shares.Add(lvl.Size)
			if spent.GreaterThanOrEqual(notional) {
				break
			}
			continue
		}

		// Partial take: spend exactly the remaining budget at this level.
		shares = shares.Add(remaining.Div(lvl.Price))
		spent = notional
		break
	}

	if spent.LessThan(notional) || !shares.IsPositive() {
		return decimal.Zero, domain.ErrInsufficientDepth
	}
	return spent.Div(shares), nil
}
