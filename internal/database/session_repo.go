package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oakhollow/barnwatch/internal/timeline"
)

type Session struct {
	ID         string
	Source     string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Frames     int
	Errors     int
	Alerts     int
}

// VerdictRow is one persisted timeline record. Failure records carry only
// Frame, Error and CreatedAt.
type VerdictRow struct {
	ID                string
	SessionID         string
	Frame             string
	Severity          string
	HorseState        string
	Description       string
	Hazards           []string
	Confidence        float64
	RecommendedAction string
	Truncated         bool
	LatencySeconds    float64
	Error             string
	CreatedAt         time.Time
}

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// SaveSession persists one finished session and its full record sequence.
func (r *SessionRepo) SaveSession(ctx context.Context, tl *timeline.Timeline, mode string, alerts int, startedAt, finishedAt time.Time) error {
	summary := tl.Summary()

	sessQuery := `
		INSERT INTO sessions (id, source, mode, started_at, finished_at, frames, errors, alerts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if r.db.dbType == "sqlite" {
		sessQuery = `
		INSERT INTO sessions (id, source, mode, started_at, finished_at, frames, errors, alerts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err := r.db.conn.ExecContext(ctx, sessQuery,
		tl.SessionID(), tl.Source(), mode, startedAt, finishedAt,
		summary.Frames, summary.Errors, alerts)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	recQuery := `
		INSERT INTO verdicts (id, session_id, frame, severity, horse_state, description,
			hazards, confidence, recommended_action, truncated, latency_seconds, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if r.db.dbType == "sqlite" {
		recQuery = `
		INSERT INTO verdicts (id, session_id, frame, severity, horse_state, description,
			hazards, confidence, recommended_action, truncated, latency_seconds, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	now := time.Now()
	for _, rec := range tl.Records() {
		row := recordToRow(rec, now)
		hazardsJSON, err := json.Marshal(row.Hazards)
		if err != nil {
			return fmt.Errorf("failed to marshal hazards: %w", err)
		}

		_, err = r.db.conn.ExecContext(ctx, recQuery,
			uuid.New().String(), tl.SessionID(), row.Frame, row.Severity, row.HorseState,
			row.Description, string(hazardsJSON), row.Confidence, row.RecommendedAction,
			row.Truncated, row.LatencySeconds, row.Error, row.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert verdict for frame %s: %w", row.Frame, err)
		}
	}

	return nil
}

func recordToRow(rec timeline.Record, fallbackTime time.Time) VerdictRow {
	if rec.Failure != nil {
		return VerdictRow{
			Frame:     rec.Failure.Frame,
			Hazards:   []string{},
			Error:     rec.Failure.Cause,
			CreatedAt: parseRecordTime(rec.Failure.Timestamp, fallbackTime),
		}
	}

	v := rec.Verdict
	hazards := v.Hazards
	if hazards == nil {
		hazards = []string{}
	}
	return VerdictRow{
		Frame:             v.Frame,
		Severity:          string(v.Severity),
		HorseState:        v.HorseState,
		Description:       v.Description,
		Hazards:           hazards,
		Confidence:        v.Confidence,
		RecommendedAction: v.RecommendedAction,
		Truncated:         v.Truncated,
		LatencySeconds:    v.LatencySeconds,
		CreatedAt:         parseRecordTime(v.Timestamp, fallbackTime),
	}
}

func parseRecordTime(iso string, fallback time.Time) time.Time {
	if ts, err := time.Parse(time.RFC3339, iso); err == nil {
		return ts
	}
	return fallback
}

func (r *SessionRepo) RecentSessions(ctx context.Context, limit int) ([]*Session, error) {
	query := `
		SELECT id, source, mode, started_at, finished_at, frames, errors, alerts
		FROM sessions
		ORDER BY started_at DESC
		LIMIT $1`
	if r.db.dbType == "sqlite" {
		query = `
		SELECT id, source, mode, started_at, finished_at, frames, errors, alerts
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`
	}

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.Source, &s.Mode, &s.StartedAt, &s.FinishedAt,
			&s.Frames, &s.Errors, &s.Alerts); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (r *SessionRepo) VerdictsBySession(ctx context.Context, sessionID string) ([]*VerdictRow, error) {
	query := `
		SELECT id, session_id, frame, severity, horse_state, description,
			hazards, confidence, recommended_action, truncated, latency_seconds, error, created_at
		FROM verdicts
		WHERE session_id = $1
		ORDER BY created_at`
	if r.db.dbType == "sqlite" {
		query = `
		SELECT id, session_id, frame, severity, horse_state, description,
			hazards, confidence, recommended_action, truncated, latency_seconds, error, created_at
		FROM verdicts
		WHERE session_id = ?
		ORDER BY created_at`
	}

	rows, err := r.db.conn.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []*VerdictRow
	for rows.Next() {
		row := &VerdictRow{}
		var hazardsJSON string
		if err := rows.Scan(&row.ID, &row.SessionID, &row.Frame, &row.Severity, &row.HorseState,
			&row.Description, &hazardsJSON, &row.Confidence, &row.RecommendedAction,
			&row.Truncated, &row.LatencySeconds, &row.Error, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if hazardsJSON != "" {
			if err := json.Unmarshal([]byte(hazardsJSON), &row.Hazards); err != nil {
				row.Hazards = []string{}
			}
		}
		verdicts = append(verdicts, row)
	}

	return verdicts, rows.Err()
}
