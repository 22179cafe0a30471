// Package storage is the local audit journal. It records confirmed fills
// and archived windows for reporting; recovery never reads it — the state
// file is the single source of truth.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"updown_go/internal/domain"
)

// Storage is the SQLite-backed journal.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a journal at the given path (Pure Go SQLite).
func NewStorage(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.FillRecord{}, &domain.WindowRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// RecordFill appends one confirmed fill to the journal.
func (s *Storage) RecordFill(marketID string, fill domain.Fill) error {
	rec := domain.FillRecord{
		MarketID: marketID,
		Side:     string(fill.Side),
		Role:     string(fill.Role),
		Price:    fill.Price.String(),
		Shares:   fill.Shares.String(),
		Cost:     fill.Cost.String(),
		FilledAt: fill.Time,
	}
	return s.db.Create(&rec).Error
}

// RecordWindow archives one resolved window.
func (s *Storage) RecordWindow(state *domain.PositionState, reason string) error {
	rec := domain.WindowRecord{
		MarketID:    state.MarketID,
		Slug:        state.Slug,
		MainSide:    string(state.MainSide),
		FinalStatus: string(state.Status),
		TotalStake:  state.TotalStake.String(),
		AvgEntry:    state.AvgEntryPrice.String(),
		DCACount:    state.DCACount,
		Hedged:      state.HedgeFill != nil,
		CloseReason: reason,
		WindowStart: state.WindowStart,
		WindowEnd:   state.WindowEnd,
	}
	return s.db.Create(&rec).Error
}

// FillsForMarket returns the journaled fills for one market, oldest first.
func (s *Storage) FillsForMarket(marketID string) ([]domain.FillRecord, error) {
	var fills []domain.FillRecord
	err := s.db.Where("market_id = ?", marketID).Order("id asc").Find(&fills).Error
	return fills, err
}

// RecentWindows returns the most recently archived windows.
func (s *Storage) RecentWindows(limit int) ([]domain.WindowRecord, error) {
	var windows []domain.WindowRecord
	err := s.db.Order("id desc").Limit(limit).Find(&windows).Error
	return windows, err
}
