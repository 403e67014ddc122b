package data

import (
	"context"
	"fmt"
)

// schema holds the DDL for the trust-layer tables. Numeric columns use
// BIGINT because logical heights and stake amounts are unsigned 64-bit
// values on the wire.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS oracles (
		id                BIGINT PRIMARY KEY,
		owner             TEXT NOT NULL,
		stake             BIGINT NOT NULL,
		reputation        BIGINT NOT NULL DEFAULT 0,
		active            BOOLEAN NOT NULL DEFAULT TRUE,
		registered_at     BIGINT NOT NULL,
		last_response_at  BIGINT NOT NULL DEFAULT 0,
		total_responses   BIGINT NOT NULL DEFAULT 0,
		correct_responses BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS oracles_active_owner
		ON oracles (owner) WHERE active`,
	`CREATE TABLE IF NOT EXISTS validation_requests (
		id                     BIGINT PRIMARY KEY,
		submission_id          BIGINT NOT NULL UNIQUE,
		status                 TEXT NOT NULL,
		created_at             BIGINT NOT NULL,
		deadline               BIGINT NOT NULL,
		total_oracles_expected INT NOT NULL DEFAULT 0,
		responses_received     INT NOT NULL DEFAULT 0,
		valid_count            INT NOT NULL DEFAULT 0,
		invalid_count          INT NOT NULL DEFAULT 0,
		outcome                TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS oracle_responses (
		request_id        BIGINT NOT NULL,
		oracle_id         BIGINT NOT NULL,
		valid             BOOLEAN NOT NULL,
		confidence        INT NOT NULL,
		gps_verified      BOOLEAN NOT NULL,
		hr_consistency    BOOLEAN NOT NULL,
		step_plausibility BOOLEAN NOT NULL,
		ts                BIGINT NOT NULL,
		processed         BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (request_id, oracle_id)
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id             BIGINT PRIMARY KEY,
		"user"         TEXT NOT NULL,
		hash           BYTEA NOT NULL UNIQUE,
		ts             BIGINT NOT NULL,
		height         BIGINT NOT NULL,
		device_id      BYTEA NOT NULL,
		steps          INT NOT NULL,
		heart_rate_avg INT NOT NULL,
		calories       INT NOT NULL,
		distance       INT NOT NULL,
		gps_data       BYTEA,
		metadata       BYTEA,
		session_nonce  BIGINT NOT NULL,
		fraud_score    INT NOT NULL DEFAULT 0,
		status         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS submissions_user ON submissions ("user")`,
	`CREATE TABLE IF NOT EXISTS fraud_records (
		"user"           TEXT PRIMARY KEY,
		cumulative_score BIGINT NOT NULL DEFAULT 0,
		banned           BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS fraud_history (
		"user"   TEXT NOT NULL,
		position INT NOT NULL,
		ts       BIGINT NOT NULL,
		score    INT NOT NULL,
		flagged  BOOLEAN NOT NULL,
		PRIMARY KEY ("user", position)
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
