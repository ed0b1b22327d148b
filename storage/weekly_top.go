package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
)

// WeeklyTopRow is the persisted projection of a scored deal
type WeeklyTopRow struct {
	Week           string    `db:"week" json:"week"`
	AppID          string    `db:"app_id" json:"app_id"`
	Title          string    `db:"title" json:"title"`
	Discount       int       `db:"discount" json:"discount"`
	FinalAmount    int64     `db:"final_amount" json:"final_amount"`
	FinalFormatted string    `db:"final_formatted" json:"final_formatted"`
	Score          int       `db:"score" json:"score"`
	URL            string    `db:"url" json:"url"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyTopStore keeps the best deals of each ISO week
type WeeklyTopStore interface {
	Save(ctx context.Context, deals []model.ScoredDeal, at time.Time) error
	Top(ctx context.Context, at time.Time, limit int) ([]WeeklyTopRow, error)
	Clear(ctx context.Context) error
	Close() error
}

// ISOWeek formats the ISO week containing t, e.g. "2026-W43"
func ISOWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// RowFromDeal builds the projection stored for deal
func RowFromDeal(deal model.ScoredDeal, at time.Time) WeeklyTopRow {
	return WeeklyTopRow{
		Week:           ISOWeek(at),
		AppID:          deal.Entry.ItemID,
		Title:          deal.Entry.DisplayName,
		Discount:       deal.Quote.DiscountPercent,
		FinalAmount:    deal.Quote.FinalAmount,
		FinalFormatted: deal.Quote.FinalFormatted,
		Score:          deal.Score,
		URL:            deal.URL,
		UpdatedAt:      at.UTC(),
	}
}

// PostgresWeeklyTop persists the weekly top in PostgreSQL
type PostgresWeeklyTop struct {
	db *sqlx.DB
}

// NewPostgresWeeklyTop connects, retrying while the server starts, and
// creates the table if needed
func NewPostgresWeeklyTop(ctx context.Context, dsn string) (*PostgresWeeklyTop, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStorage("postgres", "open", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, errors.NewStorage("postgres", "ping cancelled", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, errors.NewStorage("postgres", "ping failed after retries", err)
	}

	s := &PostgresWeeklyTop{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.NewStorage("postgres", "migrate", err)
	}

	logger.ForStorage().Info().Msg("weekly top store ready")
	return s, nil
}

func (s *PostgresWeeklyTop) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS weekly_top (
			week            VARCHAR(10)  NOT NULL,
			app_id          VARCHAR(20)  NOT NULL,
			title           TEXT         NOT NULL,
			discount        INTEGER      NOT NULL DEFAULT 0,
			final_amount    BIGINT       NOT NULL DEFAULT 0,
			final_formatted TEXT         NOT NULL DEFAULT '',
			score           INTEGER      NOT NULL DEFAULT 0,
			url             TEXT         NOT NULL DEFAULT '',
			updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (week, app_id)
		);

		CREATE INDEX IF NOT EXISTS idx_weekly_top_score ON weekly_top(week, score DESC);
	`)
	return err
}

// Save upserts deals into the week containing at
func (s *PostgresWeeklyTop) Save(ctx context.Context, deals []model.ScoredDeal, at time.Time) error {
	if len(deals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewStorage("weekly_top", "begin transaction", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO weekly_top (week, app_id, title, discount, final_amount, final_formatted, score, url, updated_at)
		VALUES (:week, :app_id, :title, :discount, :final_amount, :final_formatted, :score, :url, :updated_at)
		ON CONFLICT (week, app_id) DO UPDATE SET
			title           = EXCLUDED.title,
			discount        = EXCLUDED.discount,
			final_amount    = EXCLUDED.final_amount,
			final_formatted = EXCLUDED.final_formatted,
			score           = EXCLUDED.score,
			url             = EXCLUDED.url,
			updated_at      = EXCLUDED.updated_at`

	for _, d := range deals {
		if _, err := tx.NamedExecContext(ctx, upsert, RowFromDeal(d, at)); err != nil {
			return errors.NewStorage("weekly_top", "upsert "+d.Entry.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("weekly_top", "commit", err)
	}
	logger.ForStorage().Debug().Int("rows", len(deals)).Str("week", ISOWeek(at)).Msg("weekly top saved")
	return nil
}

// Top returns the best rows of the week containing at
func (s *PostgresWeeklyTop) Top(ctx context.Context, at time.Time, limit int) ([]WeeklyTopRow, error) {
	if limit <= 0 {
		limit = 15
	}
	var rows []WeeklyTopRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT week, app_id, title, discount, final_amount, final_formatted, score, url, updated_at
		FROM weekly_top
		WHERE week = $1
		ORDER BY score DESC, discount DESC, app_id
		LIMIT $2`, ISOWeek(at), limit)
	if err != nil {
		return nil, errors.NewStorage("weekly_top", "select", err)
	}
	return rows, nil
}

// Clear deletes every stored week
func (s *PostgresWeeklyTop) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM weekly_top"); err != nil {
		return errors.NewStorage("weekly_top", "clear", err)
	}
	return nil
}

// Close closes the database handle
func (s *PostgresWeeklyTop) Close() error {
	return s.db.Close()
}
