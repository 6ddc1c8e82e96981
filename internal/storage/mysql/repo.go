package mysql

import (
	"context"
	"database/sql"
	"time"

	"gbp_responder/internal/domain"
)

// Store persists automation events for later inspection. Writes are
// best-effort from the coordinator's point of view; a failed insert is logged
// upstream and never fails the review being processed.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// EnsureSchema creates the activity table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createActivitySQL)
	return err
}

func (s *Store) Record(ctx context.Context, ev domain.AutomationEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, insertActivitySQL,
		string(ev.Kind),
		ev.ReviewID,
		ev.Rating,
		nullStr(ev.Reviewer),
		nullStr(ev.Response),
		nullStr(ev.Error),
		ev.Latency.Milliseconds(),
		at.UTC(),
	)
	return err
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.AutomationEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, recentActivitySQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AutomationEvent
	for rows.Next() {
		var (
			ev        domain.AutomationEvent
			kind      string
			reviewer  sql.NullString
			response  sql.NullString
			errMsg    sql.NullString
			latencyMS int64
		)
		if err := rows.Scan(&kind, &ev.ReviewID, &ev.Rating, &reviewer, &response, &errMsg, &latencyMS, &ev.At); err != nil {
			return nil, err
		}
		ev.Kind = domain.EventKind(kind)
		ev.Reviewer = reviewer.String
		ev.Response = response.String
		ev.Error = errMsg.String
		ev.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
