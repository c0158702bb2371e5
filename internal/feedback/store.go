package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/postgres"
)

const table = "prediction_feedback"

// Store persists feedback in PostgreSQL.
//
// The schema is created by EnsureSchema:
//
//	CREATE TABLE prediction_feedback (
//	    id              UUID PRIMARY KEY,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    model           TEXT NOT NULL,
//	    text            TEXT NOT NULL,
//	    predicted_label TEXT NOT NULL,
//	    correctness     TEXT NOT NULL,
//	    comment         TEXT NOT NULL DEFAULT ''
//	);
type Store struct {
	db     *postgres.Client
	sb     sq.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:    time.Now,
		logger: slog.Default().With("component", "feedback-store"),
	}
}

// EnsureSchema creates the feedback table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, table,
		`CREATE TABLE IF NOT EXISTS `+table+` (
			id              UUID PRIMARY KEY,
			created_at      TIMESTAMPTZ NOT NULL,
			model           TEXT NOT NULL,
			text            TEXT NOT NULL,
			predicted_label TEXT NOT NULL,
			correctness     TEXT NOT NULL,
			comment         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS `+table+`_model_idx ON `+table+` (model, correctness)`,
	)
}

// Record validates r, assigns its id and timestamp and appends it.
func (s *Store) Record(ctx context.Context, r Record) (Record, error) {
	r, err := Normalize(r)
	if err != nil {
		return Record{}, err
	}
	r.ID = uuid.New()
	r.CreatedAt = s.now().UTC()

	query, args, err := s.sb.Insert(table).
		Columns("id", "created_at", "model", "text", "predicted_label", "correctness", "comment").
		Values(r.ID, r.CreatedAt, r.Model, r.Text, r.PredictedLabel, string(r.Correctness), r.Comment).
		ToSql()
	if err != nil {
		return Record{}, fmt.Errorf("building feedback insert: %w", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, query, args...); err != nil {
		return Record{}, fmt.Errorf("inserting feedback: %w", err)
	}
	s.logger.Info("feedback recorded", "id", r.ID, "model", r.Model, "correctness", r.Correctness)
	return r, nil
}

// Stats counts feedback per model and correctness. An empty model filter
// counts every model.
func (s *Store) Stats(ctx context.Context, model string) (Stats, error) {
	q := s.sb.Select("model", "correctness", "COUNT(*)").
		From(table).
		GroupBy("model", "correctness").
		OrderBy("model", "correctness")
	if model != "" {
		q = q.Where(sq.Eq{"model": model})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("building feedback stats query: %w", err)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("querying feedback stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{
		ByCorrectness: make(map[Correctness]int64),
		ByModel:       make(map[string]map[Correctness]int64),
	}
	for rows.Next() {
		var m, c string
		var n int64
		if err := rows.Scan(&m, &c, &n); err != nil {
			return Stats{}, fmt.Errorf("scanning feedback stats: %w", err)
		}
		stats.add(m, Correctness(c), n)
	}
	return stats, rows.Err()
}

// Recent returns the newest limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query, args, err := s.sb.Select("id", "created_at", "model", "text", "predicted_label", "correctness", "comment").
		From(table).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building recent feedback query: %w", err)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent feedback: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var c string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Model, &r.Text, &r.PredictedLabel, &c, &r.Comment); err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		r.Correctness = Correctness(c)
		out = append(out, r)
	}
	return out, rows.Err()
}
