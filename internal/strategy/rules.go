// Package strategy holds the decision rules for the up/down window agent.
// Decide is a pure function of the cycle's quotes and the current position
// state; it proposes at most one action per cycle and never mutates state.
package strategy

import (
	"github.com/shopspring/decimal"

	"updown_go/internal/domain"
)

// ActionType defines the type of trading action
type ActionType int

const (
	ActionNone ActionType = iota
	ActionEnter
	ActionAdd
	ActionHedge
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionEnter:
		return "ENTER"
	case ActionAdd:
		return "ADD"
	case ActionHedge:
		return "HEDGE"
	default:
		return "UNKNOWN"
	}
}

// Action is the intent proposed for one cycle. The ledger applies it only
// after the execution sink confirms a fill.
type Action struct {
	Type     ActionType
	Side     domain.OutcomeSide // side to buy; for HEDGE this is the opposite side
	Notional decimal.Decimal    // USD to spend
	SignalPx decimal.Decimal    // the VWAP that triggered the rule
}

// None is the no-op action.
func None() Action {
	return Action{Type: ActionNone}
}

// Params are the threshold knobs evaluated each cycle.
type Params struct {
	EntryTriggerVWAP decimal.Decimal // enter when a side's VWAP is at or below this
	DCAStepPct       decimal.Decimal // fractional drop from avg entry that arms a DCA (0.10 = 10%)
	MaxDCA           int             // maximum DCA fills per window
	ChunkStake       decimal.Decimal // USD per entry/DCA order
	MaxStakePerEvent decimal.Decimal // total USD cap per window
	HedgeThreshold   decimal.Decimal // hedge when avg entry + opposite VWAP is below this
}

// Decide evaluates the ordered rule table against the current state.
// Rules are mutually exclusive by status, so at most one state-mutating
// action can come out of a cycle.
func Decide(q domain.Quotes, st *domain.PositionState, p Params) Action {
	switch st.Status {
	case domain.StatusFlat:
		return decideEntry(q, p)
	case domain.StatusOpen:
		if a := decideDCA(q, st, p); a.Type != ActionNone {
			return a
		}
		return decideHedge(q, st, p)
	default:
		// HEDGED and CLOSED are terminal for trading.
		return None()
	}
}

func decideEntry(q domain.Quotes, p Params) Action {
	if p.ChunkStake.GreaterThan(p.MaxStakePerEvent) {
		return None()
	}

	upOK := q.Up.LessThanOrEqual(p.EntryTriggerVWAP)
	downOK := q.Down.LessThanOrEqual(p.EntryTriggerVWAP)

	var side domain.OutcomeSide
	switch {
	case upOK && downOK:
		// Both qualify: take the cheaper side, UP on a tie.
		if q.Up.LessThanOrEqual(q.Down) {
			side = domain.SideUp
		} else {
			side = domain.SideDown
		}
	case upOK:
		side = domain.SideUp
	case downOK:
		side = domain.SideDown
	default:
		return None()
	}

	return Action{Type: ActionEnter, Side: side, Notional: p.ChunkStake, SignalPx: q.For(side)}
}

func decideDCA(q domain.Quotes, st *domain.PositionState, p Params) Action {
	if st.DCACount >= p.MaxDCA {
		return None()
	}
	if st.TotalStake.Add(p.ChunkStake).GreaterThan(p.MaxStakePerEvent) {
		return None()
	}
	if !st.AvgEntryPrice.IsPositive() {
		return None()
	}

	// The drop is measured from the average entry, not the previous fill,
	// so repeated dips smaller than the step never stack into extra adds.
	mainPx := q.For(st.MainSide)
	armAt := st.AvgEntryPrice.Mul(decimal.NewFromInt(1).Sub(p.DCAStepPct))
	if mainPx.GreaterThan(armAt) {
		return None()
	}

	return Action{Type: ActionAdd, Side: st.MainSide, Notional: p.ChunkStake, SignalPx: mainPx}
}

func decideHedge(q domain.Quotes, st *domain.PositionState, p Params) Action {
	if st.HedgeFill != nil {
		return None()
	}
	if !st.AvgEntryPrice.IsPositive() {
		return None()
	}

	opp := st.MainSide.Opposite()
	oppPx := q.For(opp)
	if st.AvgEntryPrice.Add(oppPx).GreaterThanOrEqual(p.HedgeThreshold) {
		return None()
	}

	// Hedge notional matches the main stake so the opposite outcome pays
	// back what the position cost.
	return Action{Type: ActionHedge, Side: opp, Notional: st.TotalStake, SignalPx: oppPx}
}
