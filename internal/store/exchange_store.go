package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exchange is one served prompt and its outcome.
type Exchange struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Answers   []string  `json:"answers"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExchangeStore is an append-only log of exchanges backed by SQLite. It is
// never consulted to answer a prompt.
type ExchangeStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewExchangeStore creates an exchange store on top of an initialized database.
func NewExchangeStore(db *sql.DB) *ExchangeStore {
	return &ExchangeStore{db: db, now: time.Now}
}

// Record appends e to the log. ID and CreatedAt are filled in when empty, and
// the stored value is returned.
func (s *ExchangeStore) Record(ctx context.Context, e Exchange) (Exchange, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if e.Answers == nil {
		e.Answers = []string{}
	}

	answers, err := json.Marshal(e.Answers)
	if err != nil {
		return Exchange{}, fmt.Errorf("failed to encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, request_id, model, prompt, answers, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Model, e.Prompt, string(answers), e.Error, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Exchange{}, fmt.Errorf("failed to insert exchange: %w", err)
	}
	return e, nil
}

// Recent returns up to limit exchanges, newest first.
func (s *ExchangeStore) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, model, prompt, answers, error, created_at FROM exchanges ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		var (
			e       Exchange
			answers string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Model, &e.Prompt, &answers, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		if err := json.Unmarshal([]byte(answers), &e.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of exchange %s: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}
