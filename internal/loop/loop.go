// Package loop drives the single-threaded poll cycle: observe the active
// market, compute signal VWAPs, evaluate the rules, execute at most one
// order, and apply the confirmed fill to the ledger. Any transient failure
// aborts the cycle before mutation; the next tick retries from scratch.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"updown_go/internal/book"
	"updown_go/internal/domain"
	"updown_go/internal/ledger"
	"updown_go/internal/strategy"
)

// ErrCheckpointHalt is returned by Run when too many consecutive state
// checkpoints have failed. Trading with an unpersistable ledger risks
// double orders after a restart, so the loop stops instead.
var ErrCheckpointHalt = errors.New("halting: state checkpoint failing persistently")

// Deps are the collaborators the loop drives each cycle.
type Deps struct {
	Markets domain.MarketSource
	Books   domain.BookSource
	Exec    domain.ExecutionSink
	Ledger  *ledger.Ledger
}

// Options are the cycle knobs, parsed out of configuration.
type Options struct {
	Params                strategy.Params
	SignalShares          decimal.Decimal // share count the trigger VWAP is quoted for
	MaxEntryVWAP          decimal.Decimal // execution guard for entry and DCA orders
	MaxHedgeVWAP          decimal.Decimal // execution guard for hedge orders
	PollInterval          time.Duration
	OrderThrottle         time.Duration // minimum spacing between orders
	MaxCheckpointFailures int           // consecutive failures before halting
}

// Loop owns the poll cadence. It is not safe for concurrent use; exactly
// one goroutine runs it.
type Loop struct {
	deps Deps
	opts Options
	now  func() time.Time

	checkpointFailures int
}

// New creates a loop. MaxCheckpointFailures defaults to 3 when unset.
func New(deps Deps, opts Options) *Loop {
	if opts.MaxCheckpointFailures <= 0 {
		opts.MaxCheckpointFailures = 3
	}
	return &Loop{deps: deps, opts: opts, now: time.Now}
}

// Run polls until the context is cancelled or a halt condition is hit.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("Poll loop started",
		slog.Duration("interval", l.opts.PollInterval),
		slog.String("chunk_stake", l.opts.Params.ChunkStake.String()),
	)

	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := l.Cycle(ctx); err != nil {
			if errors.Is(err, ErrCheckpointHalt) {
				return err
			}
			if domain.IsRetriable(err) {
				slog.Warn("Cycle aborted, will retry", slog.Any("error", err))
			} else {
				slog.Error("Cycle failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("Poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one observe-decide-act pass. It returns an error only when the
// cycle had to abort; a quiet cycle with no action returns nil.
func (l *Loop) Cycle(ctx context.Context) error {
	market, err := l.deps.Markets.ActiveMarket(ctx)
	if err != nil {
		return fmt.Errorf("market discovery failed: %w", err)
	}

	if err := l.syncWindow(market); err != nil {
		return err
	}

	st := l.deps.Ledger.State()
	if st.Status == domain.StatusClosed {
		// Resolved window; nothing to do until the next one appears.
		return nil
	}

	quotes, err := l.signalQuotes(ctx, st)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientDepth) {
			slog.Debug("Book too thin for a signal, skipping cycle", slog.String("slug", st.Slug))
			return nil
		}
		return err
	}

	action := strategy.Decide(quotes, st, l.opts.Params)
	if action.Type == strategy.ActionNone {
		return nil
	}

	if !l.throttleOK(st) {
		slog.Debug("Order throttle active, deferring action",
			slog.String("action", action.Type.String()),
			slog.Time("last_order_at", st.LastOrderAt),
		)
		return nil
	}

	if ok, err := l.executionGuardOK(ctx, st, action); err != nil {
		return err
	} else if !ok {
		return nil
	}

	return l.execute(ctx, st, action)
}

// syncWindow rotates the ledger when a new window appears and closes the
// current one when it has expired. Rotation failures count toward the
// checkpoint halt.
func (l *Loop) syncWindow(market *domain.MarketInfo) error {
	st := l.deps.Ledger.State()

	if st == nil || st.Slug != market.Slug {
		if err := l.deps.Ledger.BeginWindow(*market); err != nil {
			return l.checkpointFailed(fmt.Errorf("window rotation failed: %w", err))
		}
		l.checkpointFailures = 0
		slog.Info("New market window",
			slog.String("slug", market.Slug),
			slog.Time("window_end", market.EndDate),
		)
		return nil
	}

	if st.Status != domain.StatusClosed && st.Expired(l.now()) {
		if err := l.deps.Ledger.CloseWindow("expired"); err != nil {
			return l.checkpointFailed(fmt.Errorf("window close failed: %w", err))
		}
		l.checkpointFailures = 0
		slog.Info("Window expired, position archived",
			slog.String("slug", st.Slug),
			slog.String("final_status", string(st.Status)),
		)
	}
	return nil
}

// signalQuotes fetches both books and computes the per-side trigger VWAPs
// for the configured signal size.
func (l *Loop) signalQuotes(ctx context.Context, st *domain.PositionState) (domain.Quotes, error) {
	upBook, err := l.deps.Books.Book(ctx, st.UpTokenID)
	if err != nil {
		return domain.Quotes{}, fmt.Errorf("up book fetch failed: %w", err)
	}
	downBook, err := l.deps.Books.Book(ctx, st.DownTokenID)
	if err != nil {
		return domain.Quotes{}, fmt.Errorf("down book fetch failed: %w", err)
	}

	up, err := book.VWAPForShares(upBook.Asks, l.opts.SignalShares)
	if err != nil {
		return domain.Quotes{}, err
	}
	down, err := book.VWAPForShares(downBook.Asks, l.opts.SignalShares)
	if err != nil {
		return domain.Quotes{}, err
	}
	return domain.Quotes{Up: up, Down: down}, nil
}

func (l *Loop) throttleOK(st *domain.PositionState) bool {
	if l.opts.OrderThrottle <= 0 || st.LastOrderAt.IsZero() {
		return true
	}
	return l.now().Sub(st.LastOrderAt) >= l.opts.OrderThrottle
}

// executionGuardOK re-quotes the order's actual notional against the live
// book and rejects the action when the resulting VWAP is worse than the
// configured ceiling. A thin book fails the guard, not the cycle.
func (l *Loop) executionGuardOK(ctx context.Context, st *domain.PositionState, action strategy.Action) (bool, error) {
	b, err := l.deps.Books.Book(ctx, st.TokenFor(action.Side))
	if err != nil {
		return false, fmt.Errorf("guard book fetch failed: %w", err)
	}

	vwap, err := book.VWAPForNotional(b.Asks, action.Notional)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientDepth) {
			slog.Warn("Book cannot absorb order, skipping",
				slog.String("action", action.Type.String()),
				slog.String("notional", action.Notional.String()),
			)
			return false, nil
		}
		return false, err
	}

	ceiling := l.opts.MaxEntryVWAP
	if action.Type == strategy.ActionHedge {
		ceiling = l.opts.MaxHedgeVWAP
	}
	if vwap.GreaterThan(ceiling) {
		slog.Warn("Execution VWAP above ceiling, skipping",
			slog.String("action", action.Type.String()),
			slog.String("vwap", vwap.String()),
			slog.String("ceiling", ceiling.String()),
		)
		return false, nil
	}
	return true, nil
}

// execute places the order and applies the confirmed fill. Order failures
// abort the cycle without mutation; apply failures after a real fill count
// toward the checkpoint halt because the fill exists but is unrecorded.
func (l *Loop) execute(ctx context.Context, st *domain.PositionState, action strategy.Action) error {
	tokenID := st.TokenFor(action.Side)
	slog.Info("Placing order",
		slog.String("action", action.Type.String()),
		slog.String("side", string(action.Side)),
		slog.String("notional", action.Notional.String()),
		slog.String("signal_vwap", action.SignalPx.String()),
	)

	conf, err := l.deps.Exec.MarketBuy(ctx, tokenID, action.Notional)
	if err != nil {
		return fmt.Errorf("order failed: %w", err)
	}

	switch action.Type {
	case strategy.ActionEnter:
		err = l.deps.Ledger.ApplyEnter(action.Side, *conf)
	case strategy.ActionAdd:
		err = l.deps.Ledger.ApplyAdd(*conf)
	case strategy.ActionHedge:
		err = l.deps.Ledger.ApplyHedge(*conf)
	default:
		return fmt.Errorf("unexpected action %s", action.Type)
	}
	if err != nil {
		return l.checkpointFailed(fmt.Errorf("failed to record %s fill: %w", action.Type, err))
	}

	l.checkpointFailures = 0
	slog.Info("Fill recorded",
		slog.String("action", action.Type.String()),
		slog.String("avg_price", conf.AvgPrice.String()),
		slog.String("shares", conf.Shares.String()),
		slog.String("cost", conf.Cost.String()),
	)
	return nil
}

// checkpointFailed bumps the consecutive-failure counter and converts the
// error into a halt once the cap is reached.
func (l *Loop) checkpointFailed(err error) error {
	l.checkpointFailures++
	if l.checkpointFailures >= l.opts.MaxCheckpointFailures {
		return fmt.Errorf("%w after %d failures, last: %v", ErrCheckpointHalt, l.checkpointFailures, err)
	}
	return err
}
