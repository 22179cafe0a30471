// Package ledger owns the durable position record for the active market
// window. All mutation goes through Apply* methods which stage a copy,
// checkpoint it, and only then swap it in, so the in-memory state never
// outlives its persisted counterpart.
package ledger

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"updown_go/internal/domain"
)

// Limits are the caps the ledger enforces on incoming actions. Violations
// are rejected with sentinel errors, never clamped.
type Limits struct {
	MaxDCA           int
	MaxStakePerEvent decimal.Decimal
}

// Ledger is the sole owner of the PositionState.
type Ledger struct {
	store   *StateFile
	journal domain.Journal // optional, reporting only
	limits  Limits
	state   *domain.PositionState
}

// New creates a ledger backed by the given state file. journal may be nil.
func New(store *StateFile, journal domain.Journal, limits Limits) *Ledger {
	return &Ledger{store: store, journal: journal, limits: limits}
}

// Restore loads the last checkpointed state, if any. A missing file is not
// an error: the loop will begin a fresh window on its first cycle.
func (l *Ledger) Restore() error {
	st, err := l.store.Load()
	if err != nil {
		if err == domain.ErrStateNotFound {
			return nil
		}
		return err
	}
	l.state = st
	slog.Info("Position state restored",
		slog.String("slug", st.Slug),
		slog.String("status", string(st.Status)),
		slog.Int("fills", len(st.Fills)),
	)
	return nil
}

// State returns the current position state. Callers must treat it as
// read-only; the ledger is the only writer.
func (l *Ledger) State() *domain.PositionState {
	return l.state
}

// BeginWindow rotates to a newly observed market window. A still-live prior
// window is closed and archived first.
func (l *Ledger) BeginWindow(m domain.MarketInfo) error {
	if l.state != nil && l.state.Status != domain.StatusClosed {
		if err := l.CloseWindow("rotated"); err != nil {
			return err
		}
	}

	stage := domain.NewPositionState(m)
	if err := l.store.Save(stage); err != nil {
		return fmt.Errorf("failed to checkpoint new window: %w", err)
	}
	l.state = stage
	return nil
}

// ApplyEnter records the first fill of the window: FLAT -> OPEN.
func (l *Ledger) ApplyEnter(side domain.OutcomeSide, conf domain.FillConfirmation) error {
	if l.state == nil || l.state.Status != domain.StatusFlat {
		return domain.ErrInvalidTransition
	}
	if !side.Valid() {
		return fmt.Errorf("%w: bad side %q", domain.ErrInvalidTransition, side)
	}
	if conf.Cost.GreaterThan(l.limits.MaxStakePerEvent) {
		return domain.ErrStakeLimit
	}

	stage := l.state.Clone()
	stage.MainSide = side
	stage.Fills = append(stage.Fills, fillFrom(conf, side, domain.RoleEntry))
	stage.RecomputeDerived()
	stage.Status = domain.StatusOpen
	stage.LastOrderAt = conf.Time

	return l.commit(stage)
}

// ApplyAdd records a DCA fill: OPEN -> OPEN.
func (l *Ledger) ApplyAdd(conf domain.FillConfirmation) error {
	if l.state == nil || l.state.Status != domain.StatusOpen {
		return domain.ErrInvalidTransition
	}
	if l.state.DCACount >= l.limits.MaxDCA {
		return domain.ErrDCALimit
	}
	if l.state.TotalStake.Add(conf.Cost).GreaterThan(l.limits.MaxStakePerEvent) {
		return domain.ErrStakeLimit
	}

	stage := l.state.Clone()
	stage.Fills = append(stage.Fills, fillFrom(conf, stage.MainSide, domain.RoleDCA))
	stage.RecomputeDerived()
	stage.LastOrderAt = conf.Time

	return l.commit(stage)
}

// ApplyHedge records the single hedge fill: OPEN -> HEDGED. HEDGED is
// terminal for trading within the window.
func (l *Ledger) ApplyHedge(conf domain.FillConfirmation) error {
	if l.state == nil || l.state.Status != domain.StatusOpen {
		return domain.ErrInvalidTransition
	}
	if l.state.HedgeFill != nil {
		return domain.ErrInvalidTransition
	}

	stage := l.state.Clone()
	hedge := fillFrom(conf, stage.MainSide.Opposite(), domain.RoleHedge)
	stage.Fills = append(stage.Fills, hedge)
	stage.HedgeFill = &hedge
	stage.RecomputeDerived()
	stage.Status = domain.StatusHedged
	stage.LastOrderAt = conf.Time

	return l.commit(stage)
}

// CloseWindow marks the window resolved: {FLAT, OPEN, HEDGED} -> CLOSED.
// The state is checkpointed one final time and archived to the journal.
func (l *Ledger) CloseWindow(reason string) error {
	if l.state == nil {
		return domain.ErrStateNotFound
	}
	if l.state.Status == domain.StatusClosed {
		return domain.ErrWindowClosed
	}

	stage := l.state.Clone()
	stage.Status = domain.StatusClosed
	if err := l.store.Save(stage); err != nil {
		return fmt.Errorf("failed to checkpoint closed window: %w", err)
	}
	l.state = stage

	if l.journal != nil {
		if err := l.journal.RecordWindow(stage, reason); err != nil {
			slog.Warn("Failed to archive window to journal", slog.String("slug", stage.Slug), slog.Any("error", err))
		}
	}
	return nil
}

// commit checkpoints the staged state and swaps it in. On checkpoint failure
// the in-memory state is left untouched so callers never observe a mutation
// that was not persisted.
func (l *Ledger) commit(stage *domain.PositionState) error {
	if err := l.store.Save(stage); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	l.state = stage

	if l.journal != nil {
		last := stage.Fills[len(stage.Fills)-1]
		if err := l.journal.RecordFill(stage.MarketID, last); err != nil {
			slog.Warn("Failed to journal fill", slog.String("market_id", stage.MarketID), slog.Any("error", err))
		}
	}
	return nil
}

func fillFrom(conf domain.FillConfirmation, side domain.OutcomeSide, role domain.FillRole) domain.Fill {
	return domain.Fill{
		Side:   side,
		Role:   role,
		Price:  conf.AvgPrice,
		Shares: conf.Shares,
		Cost:   conf.Cost,
		Time:   conf.Time,
	}
}
