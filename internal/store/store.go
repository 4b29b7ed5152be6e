package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const (
	defaultListLimit = 50
	maxListLimit     = 500
	writeRetries     = 3
)

// RunRow is the persisted form of a terminated run.
type RunRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	SessionID   string    `gorm:"index;size:128"`
	Input       string    `gorm:"type:text"`
	Output      string    `gorm:"type:text"`
	Termination string    `gorm:"size:32;index"`
	Iterations  int       `gorm:"not null"`
	Steps       string    `gorm:"type:text"` // JSON []agent.StepRecord
	DurationMS  int64     `gorm:"column:duration_ms"`
	StartedAt   time.Time `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName 固定表名
func (RunRow) TableName() string { return "agent_runs" }

// Run is a decoded RunRow.
type Run struct {
	RunID       string             `json:"run_id"`
	SessionID   string             `json:"session_id,omitempty"`
	Input       string             `json:"input"`
	Output      string             `json:"output"`
	Termination agent.Termination  `json:"termination"`
	Iterations  int                `json:"iterations"`
	Steps       []agent.StepRecord `json:"steps"`
	Duration    time.Duration      `json:"duration"`
	StartedAt   time.Time          `json:"started_at"`
}

// RunStore keeps run history in a SQL database. It implements agent.RunRecorder.
type RunStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// New migrates the schema and returns a store on pool.
func New(pool *database.PoolManager, logger *zap.Logger) (*RunStore, error) {
	if pool == nil {
		return nil, errors.New("store: nil pool")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.DB().AutoMigrate(&RunRow{}); err != nil {
		return nil, fmt.Errorf("migrate run history: %w", err)
	}
	return &RunStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "run_store")),
	}, nil
}

// RecordRun inserts rec. Recording the same run ID twice is an error.
func (s *RunStore) RecordRun(ctx context.Context, rec agent.RunRecord) error {
	steps := rec.Steps
	if steps == nil {
		steps = []agent.StepRecord{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	row := RunRow{
		ID:          rec.RunID,
		SessionID:   rec.SessionID,
		Input:       rec.Input,
		Output:      rec.Output,
		Termination: string(rec.Termination),
		Iterations:  rec.Iterations,
		Steps:       string(raw),
		DurationMS:  rec.Duration.Milliseconds(),
		StartedAt:   rec.StartedAt.UTC(),
	}
	err = s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	s.logger.Debug("run recorded",
		zap.String("run_id", rec.RunID),
		zap.String("termination", row.Termination),
	)
	return nil
}

// Get returns one run by ID.
func (s *RunStore) Get(ctx context.Context, runID string) (*Run, error) {
	var row RunRow
	err := s.pool.DB().WithContext(ctx).Where("id = ?", runID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(row)
}

// ListBySession returns the newest runs of a session first.
// limit <= 0 selects the default page size.
func (s *RunStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var rows []RunRow
	err := s.pool.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("started_at DESC").
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		r, err := decode(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, nil
}

// Ping reports database reachability.
func (s *RunStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool.
func (s *RunStore) Close() error {
	return s.pool.Close()
}

func decode(row RunRow) (*Run, error) {
	var steps []agent.StepRecord
	if row.Steps != "" {
		if err := json.Unmarshal([]byte(row.Steps), &steps); err != nil {
			return nil, fmt.Errorf("decode steps of run %s: %w", row.ID, err)
		}
	}
	if steps == nil {
		steps = []agent.StepRecord{}
	}
	return &Run{
		RunID:       row.ID,
		SessionID:   row.SessionID,
		Input:       row.Input,
		Output:      row.Output,
		Termination: agent.Termination(row.Termination),
		Iterations:  row.Iterations,
		Steps:       steps,
		Duration:    time.Duration(row.DurationMS) * time.Millisecond,
		StartedAt:   row.StartedAt,
	}, nil
}
