// Package app wires configuration, storage, exchange clients, the ledger,
// and the poll loop into a runnable agent.
package app

import (
	"context"
	"log/slog"
	"time"

	"updown_go/internal/domain"
	"updown_go/internal/execution"
	"updown_go/internal/infra"
	"updown_go/internal/infra/clob"
	"updown_go/internal/infra/gamma"
	"updown_go/internal/infra/storage"
	"updown_go/internal/ledger"
	"updown_go/internal/loop"
)

// maxSnapshotAge bounds how stale a streamed book may be before the REST
// book is preferred.
const maxSnapshotAge = 10 * time.Second

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Ledger  *ledger.Ledger
	Loop    *loop.Loop
	Stream  *clob.BookStream // nil unless a ws_url is configured
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logger, journal
// DB, exchange clients, ledger restore, and the poll loop.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping up/down agent...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Journal DB (reporting only; the state file is the recovery source)
	store, err := storage.NewStorage(cfg.JournalDBPath())
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Journal database initialized", slog.String("path", cfg.JournalDBPath()))

	// 4. Exchange clients
	markets := domain.MarketSource(gamma.NewClient(
		cfg.API.Gamma.URL,
		cfg.Market.SlugPrefixes,
		infra.DefaultUserAgent,
		cfg.RequestTimeout(),
	))
	clobClient := clob.NewClient(cfg.API.Clob.URL, clob.Credentials{
		APIKey:        cfg.API.Clob.APIKey,
		Secret:        cfg.API.Clob.Secret,
		Passphrase:    cfg.API.Clob.Passphrase,
		FunderAddress: cfg.API.Clob.FunderAddress,
	}, infra.DefaultUserAgent, cfg.RequestTimeout())

	books := domain.BookSource(clobClient)
	if cfg.API.Clob.WSURL != "" {
		b.Stream = clob.NewBookStream(cfg.API.Clob.WSURL, nil)
		books = &streamFallbackBooks{stream: b.Stream, rest: clobClient, now: time.Now}
		markets = &watchingMarkets{inner: markets, stream: b.Stream}
		slog.Info("✅ Book stream enabled", slog.String("url", cfg.API.Clob.WSURL))
	}

	// 5. Ledger restore
	led := ledger.New(ledger.NewStateFile(cfg.StatePath()), store, ledger.Limits{
		MaxDCA:           cfg.StrategyParams().MaxDCA,
		MaxStakePerEvent: cfg.StrategyParams().MaxStakePerEvent,
	})
	if err := led.Restore(); err != nil {
		return err
	}
	b.Ledger = led

	// 6. Execution sink
	var sink domain.ExecutionSink
	if cfg.DryRun() {
		sink = execution.NewSimExecution(books)
		slog.Info("🧪 Dry-run mode: orders are simulated at the quoted VWAP")
	} else {
		sink = clobClient
		slog.Info("💰 Live mode: orders go to the exchange")
	}

	b.Loop = loop.New(loop.Deps{
		Markets: markets,
		Books:   books,
		Exec:    sink,
		Ledger:  led,
	}, loop.Options{
		Params:                cfg.StrategyParams(),
		SignalShares:          cfg.SignalShares(),
		MaxEntryVWAP:          cfg.MaxEntryVWAP(),
		MaxHedgeVWAP:          cfg.MaxHedgeVWAP(),
		PollInterval:          cfg.PollInterval(),
		OrderThrottle:         cfg.OrderThrottle(),
		MaxCheckpointFailures: cfg.Loop.MaxCheckpointFailures,
	})

	return nil
}

// Run starts the stream, if any, and drives the poll loop until the
// context is cancelled or the loop halts.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.Stream != nil {
		if err := b.Stream.Connect(ctx); err != nil {
			return err
		}
		defer b.Stream.Disconnect()
	}
	return b.Loop.Run(ctx)
}

// watchingMarkets points the book stream at the active window's tokens
// whenever the window rotates. The poll loop is the only caller, so no
// locking is needed.
type watchingMarkets struct {
	inner    domain.MarketSource
	stream   *clob.BookStream
	lastSlug string
}

func (w *watchingMarkets) ActiveMarket(ctx context.Context) (*domain.MarketInfo, error) {
	m, err := w.inner.ActiveMarket(ctx)
	if err != nil {
		return nil, err
	}
	if m.Slug != w.lastSlug {
		w.stream.Watch([]string{m.UpTokenID, m.DownTokenID})
		w.lastSlug = m.Slug
	}
	return m, nil
}

// streamFallbackBooks serves streamed snapshots when fresh and falls back
// to the REST book otherwise.
type streamFallbackBooks struct {
	stream *clob.BookStream
	rest   domain.BookSource
	now    func() time.Time
}

func (s *streamFallbackBooks) Book(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	if ob, err := s.stream.Book(ctx, tokenID); err == nil {
		if s.now().Sub(ob.Timestamp) <= maxSnapshotAge {
			return ob, nil
		}
	}
	return s.rest.Book(ctx, tokenID)
}
