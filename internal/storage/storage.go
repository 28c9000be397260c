// Package storage archives finished games. Live rooms are never restored
// from it.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

type GameSummary struct {
	RoomCode   string
	Rounds     int
	Scores     []pt.Score
	FinishedAt time.Time
}

type Recorder interface {
	RecordGame(ctx context.Context, g GameSummary) error
	Close() error
}

type Nop struct{}

func (Nop) RecordGame(context.Context, GameSummary) error { return nil }
func (Nop) Close() error                                  { return nil }

type MatchResult struct {
	ID         uint      `gorm:"primaryKey"`
	RoomCode   string    `gorm:"size:16;index"`
	Rounds     int       `gorm:"not null"`
	Winner     string    `gorm:"size:32"`
	Scores     string    `gorm:"type:jsonb;not null"`
	FinishedAt time.Time `gorm:"index"`
}

type GormRecorder struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the archive table.
func Open(dsn string) (*GormRecorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.AutoMigrate(&MatchResult{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return NewGormRecorder(db), nil
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) RecordGame(ctx context.Context, g GameSummary) error {
	rec, err := toRecord(g)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record game %s: %w", g.RoomCode, err)
	}
	return nil
}

func (r *GormRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(g GameSummary) (MatchResult, error) {
	scores, err := json.Marshal(g.Scores)
	if err != nil {
		return MatchResult{}, fmt.Errorf("encode scores: %w", err)
	}
	at := g.FinishedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return MatchResult{
		RoomCode:   g.RoomCode,
		Rounds:     g.Rounds,
		Winner:     leader(g.Scores),
		Scores:     string(scores),
		FinishedAt: at,
	}, nil
}

// leader is the single top scorer, or empty on a shared lead.
func leader(scores []pt.Score) string {
	best, name, shared := -1, "", false
	for _, s := range scores {
		switch {
		case s.Score > best:
			best, name, shared = s.Score, s.Name, false
		case s.Score == best:
			shared = true
		}
	}
	if shared {
		return ""
	}
	return name
}
