// Package history persists a durable audit trail of orchestrator calls to
// a time-partitioned Postgres/TimescaleDB table, adapted from the
// teacher's internal/timescaledb/store.go metric store — same hypertable
// bootstrap, repurposed from metric events to orchestrator call records,
// which are inserted one row per call.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

const (
	tableName    = "query_call_history"
	colID        = "id"
	colTime      = "time"
	colQuery     = "natural_language_query"
	colFilters   = "extracted_filters"
	colSuccess   = "success"
	colErrorText = "error_text"
)

// Record is one audited orchestrator call.
type Record struct {
	ID               string
	Time             time.Time
	Query            string
	ExtractedFilters json.RawMessage
	Success          bool
	ErrorText        string
}

// Store persists orchestrator call records.
type Store interface {
	Record(ctx context.Context, rec Record) error
	// PruneOlderThan deletes records older than the cutoff, used by the
	// retention scheduler.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close()
}

type pgStore struct {
	pool *pgxpool.Pool
}

// ProvideStore connects to the audit store and ensures its hypertable
// exists, registering a shutdown hook through fx the same way the
// teacher's ProvideTimescaleDBPool does.
func ProvideStore(lc fx.Lifecycle, dsn string) (Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid history store DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history store: %w", err)
	}

	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = 2 * time.Second
	connectBackoff.MaxInterval = 15 * time.Second
	connectBackoff.MaxElapsedTime = 90 * time.Second

	log.Info().Msg("pinging history store with retries...")
	pingErr := backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	}, connectBackoff)
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping history store after retries: %w", pingErr)
	}
	log.Info().Msg("history store connection pool created and verified")

	store := &pgStore{pool: pool}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelSetup()
	if err := store.ensureHypertable(setupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed ensuring history hypertable: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("closing history store connection pool")
			store.Close()
			return nil
		},
	})

	return store, nil
}

func (s *pgStore) ensureHypertable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s UUID NOT NULL,
			%s TIMESTAMPTZ NOT NULL,
			%s TEXT NOT NULL,
			%s JSONB,
			%s BOOLEAN NOT NULL,
			%s TEXT
		);`,
		tableName, colID, colTime, colQuery, colFilters, colSuccess, colErrorText)

	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create base table %s: %w", tableName, err)
	}

	checkHyperSQL := `SELECT EXISTS (
        SELECT 1 FROM timescaledb_information.hypertables WHERE hypertable_name = $1
    );`
	var isHypertable bool
	_ = s.pool.QueryRow(ctx, checkHyperSQL, tableName).Scan(&isHypertable)

	if !isHypertable {
		_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb;")
		if err != nil {
			log.Warn().Err(err).Msg("failed to ensure timescaledb extension exists, proceeding without it")
		}
		createHyperSQL := fmt.Sprintf(
			"SELECT create_hypertable('%s', '%s', if_not_exists => TRUE, chunk_time_interval => INTERVAL '1 day');",
			tableName, colTime,
		)
		if _, err := s.pool.Exec(ctx, createHyperSQL); err != nil && !strings.Contains(err.Error(), "already a hypertable") {
			return fmt.Errorf("failed to create hypertable %s: %w", tableName, err)
		}
	}

	indexSQL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_time ON %s (%s DESC);",
		tableName, tableName, colTime,
	)
	if _, err := s.pool.Exec(ctx, indexSQL); err != nil {
		log.Warn().Err(err).Msg("failed to create index on history table, continuing")
	}

	return nil
}

func (s *pgStore) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES ($1,$2,$3,$4,$5,$6)",
		tableName, colID, colTime, colQuery, colFilters, colSuccess, colErrorText,
	)
	_, err := s.pool.Exec(ctx, insertSQL, rec.ID, rec.Time, rec.Query, rec.ExtractedFilters, rec.Success, rec.ErrorText)
	if err != nil {
		log.Error().Err(err).Msg("failed to record orchestrator call in history store")
		return fmt.Errorf("history insert failed: %w", err)
	}
	return nil
}

func (s *pgStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s < $1", tableName, colTime)
	tag, err := s.pool.Exec(ctx, deleteSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history prune failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}
