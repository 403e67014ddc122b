package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// Repository defines the interface for persisting trust-layer records. The
// in-memory components remain authoritative; the repository is a
// write-through mirror used for snapshots and restarts.
type Repository interface {
	// Oracle operations
	SaveOracle(ctx context.Context, oracle *Oracle) error
	GetOracle(ctx context.Context, id uint64) (*Oracle, error)
	ListOracles(ctx context.Context) ([]*Oracle, error)

	// Validation request operations
	SaveRequest(ctx context.Context, request *ValidationRequest) error
	GetRequest(ctx context.Context, id uint64) (*ValidationRequest, error)
	ListActiveRequests(ctx context.Context) ([]*ValidationRequest, error)

	// Oracle response operations
	SaveResponse(ctx context.Context, response *OracleResponse) error
	GetResponsesByRequest(ctx context.Context, requestID uint64) ([]*OracleResponse, error)

	// Submission operations
	SaveSubmission(ctx context.Context, submission *Submission) error
	GetSubmission(ctx context.Context, id uint64) (*Submission, error)
	ListSubmissionsByUser(ctx context.Context, user string) ([]*Submission, error)

	// Fraud record operations
	SaveFraudRecord(ctx context.Context, record *FraudRecord) error
	GetFraudRecord(ctx context.Context, user string) (*FraudRecord, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository instance.
func NewPostgresRepository(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close releases all database resources.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// SaveOracle upserts an oracle record.
func (r *PostgresRepository) SaveOracle(ctx context.Context, oracle *Oracle) error {
	query := `
		INSERT INTO oracles (
			id, owner, stake, reputation, active,
			registered_at, last_response_at, total_responses, correct_responses
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			stake = EXCLUDED.stake,
			reputation = EXCLUDED.reputation,
			active = EXCLUDED.active,
			last_response_at = EXCLUDED.last_response_at,
			total_responses = EXCLUDED.total_responses,
			correct_responses = EXCLUDED.correct_responses`

	_, err := r.pool.Exec(ctx, query,
		oracle.ID, oracle.Owner, oracle.Stake, oracle.Reputation, oracle.Active,
		oracle.RegisteredAt, oracle.LastResponseAt, oracle.TotalResponses, oracle.CorrectResponses)
	if err != nil {
		return fmt.Errorf("saving oracle: %w", translateError(err))
	}
	return nil
}

// GetOracle retrieves an oracle by id.
func (r *PostgresRepository) GetOracle(ctx context.Context, id uint64) (*Oracle, error) {
	query := `
		SELECT id, owner, stake, reputation, active,
		       registered_at, last_response_at, total_responses, correct_responses
		FROM oracles WHERE id = $1`

	o := &Oracle{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Owner, &o.Stake, &o.Reputation, &o.Active,
		&o.RegisteredAt, &o.LastResponseAt, &o.TotalResponses, &o.CorrectResponses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting oracle: %w", err)
	}
	return o, nil
}

// ListOracles retrieves all oracle records ordered by id.
func (r *PostgresRepository) ListOracles(ctx context.Context) ([]*Oracle, error) {
	query := `
		SELECT id, owner, stake, reputation, active,
		       registered_at, last_response_at, total_responses, correct_responses
		FROM oracles ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing oracles: %w", err)
	}
	defer rows.Close()

	var oracles []*Oracle
	for rows.Next() {
		o := &Oracle{}
		if err := rows.Scan(
			&o.ID, &o.Owner, &o.Stake, &o.Reputation, &o.Active,
			&o.RegisteredAt, &o.LastResponseAt, &o.TotalResponses, &o.CorrectResponses); err != nil {
			return nil, fmt.Errorf("scanning oracle: %w", err)
		}
		oracles = append(oracles, o)
	}
	return oracles, rows.Err()
}

// SaveRequest upserts a validation request.
func (r *PostgresRepository) SaveRequest(ctx context.Context, request *ValidationRequest) error {
	query := `
		INSERT INTO validation_requests (
			id, submission_id, status, created_at, deadline,
			total_oracles_expected, responses_received, valid_count, invalid_count, outcome
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_oracles_expected = EXCLUDED.total_oracles_expected,
			responses_received = EXCLUDED.responses_received,
			valid_count = EXCLUDED.valid_count,
			invalid_count = EXCLUDED.invalid_count,
			outcome = EXCLUDED.outcome`

	_, err := r.pool.Exec(ctx, query,
		request.ID, request.SubmissionID, string(request.Status), request.CreatedAt, request.Deadline,
		request.TotalOraclesExpected, request.ResponsesReceived, request.ValidCount, request.InvalidCount,
		string(request.Outcome))
	if err != nil {
		return fmt.Errorf("saving validation request: %w", translateError(err))
	}
	return nil
}

// GetRequest retrieves a validation request by id.
func (r *PostgresRepository) GetRequest(ctx context.Context, id uint64) (*ValidationRequest, error) {
	query := `
		SELECT id, submission_id, status, created_at, deadline,
		       total_oracles_expected, responses_received, valid_count, invalid_count, outcome
		FROM validation_requests WHERE id = $1`

	req := &ValidationRequest{}
	var status, outcome string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.SubmissionID, &status, &req.CreatedAt, &req.Deadline,
		&req.TotalOraclesExpected, &req.ResponsesReceived, &req.ValidCount, &req.InvalidCount, &outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting validation request: %w", err)
	}
	req.Status = RequestStatus(status)
	req.Outcome = Outcome(outcome)
	return req, nil
}

// ListActiveRequests retrieves all requests still accepting responses.
func (r *PostgresRepository) ListActiveRequests(ctx context.Context) ([]*ValidationRequest, error) {
	query := `
		SELECT id, submission_id, status, created_at, deadline,
		       total_oracles_expected, responses_received, valid_count, invalid_count, outcome
		FROM validation_requests WHERE status = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, string(RequestActive))
	if err != nil {
		return nil, fmt.Errorf("listing active requests: %w", err)
	}
	defer rows.Close()

	var requests []*ValidationRequest
	for rows.Next() {
		req := &ValidationRequest{}
		var status, outcome string
		if err := rows.Scan(
			&req.ID, &req.SubmissionID, &status, &req.CreatedAt, &req.Deadline,
			&req.TotalOraclesExpected, &req.ResponsesReceived, &req.ValidCount, &req.InvalidCount, &outcome); err != nil {
			return nil, fmt.Errorf("scanning validation request: %w", err)
		}
		req.Status = RequestStatus(status)
		req.Outcome = Outcome(outcome)
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// SaveResponse upserts an oracle response.
func (r *PostgresRepository) SaveResponse(ctx context.Context, response *OracleResponse) error {
	query := `
		INSERT INTO oracle_responses (
			request_id, oracle_id, valid, confidence,
			gps_verified, hr_consistency, step_plausibility, ts, processed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id, oracle_id) DO UPDATE SET
			processed = EXCLUDED.processed`

	_, err := r.pool.Exec(ctx, query,
		response.RequestID, response.OracleID, response.Valid, response.Confidence,
		response.Signals.GPSVerified, response.Signals.HRConsistency, response.Signals.StepPlausibility,
		response.Timestamp, response.Processed)
	if err != nil {
		return fmt.Errorf("saving oracle response: %w", translateError(err))
	}
	return nil
}

// GetResponsesByRequest retrieves all responses recorded for a request.
func (r *PostgresRepository) GetResponsesByRequest(ctx context.Context, requestID uint64) ([]*OracleResponse, error) {
	query := `
		SELECT request_id, oracle_id, valid, confidence,
		       gps_verified, hr_consistency, step_plausibility, ts, processed
		FROM oracle_responses WHERE request_id = $1 ORDER BY oracle_id`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("listing oracle responses: %w", err)
	}
	defer rows.Close()

	var responses []*OracleResponse
	for rows.Next() {
		resp := &OracleResponse{}
		if err := rows.Scan(
			&resp.RequestID, &resp.OracleID, &resp.Valid, &resp.Confidence,
			&resp.Signals.GPSVerified, &resp.Signals.HRConsistency, &resp.Signals.StepPlausibility,
			&resp.Timestamp, &resp.Processed); err != nil {
			return nil, fmt.Errorf("scanning oracle response: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// SaveSubmission upserts a submission record.
func (r *PostgresRepository) SaveSubmission(ctx context.Context, submission *Submission) error {
	query := `
		INSERT INTO submissions (
			id, "user", hash, ts, height, device_id,
			steps, heart_rate_avg, calories, distance,
			gps_data, metadata, session_nonce, fraud_score, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			fraud_score = EXCLUDED.fraud_score,
			status = EXCLUDED.status`

	_, err := r.pool.Exec(ctx, query,
		submission.ID, submission.User, submission.Hash, submission.Timestamp, submission.Height,
		submission.DeviceID, submission.Steps, submission.HeartRateAvg, submission.Calories,
		submission.Distance, submission.GPSData, submission.Metadata, submission.SessionNonce,
		submission.FraudScore, string(submission.Status))
	if err != nil {
		return fmt.Errorf("saving submission: %w", translateError(err))
	}
	return nil
}

// GetSubmission retrieves a submission by id.
func (r *PostgresRepository) GetSubmission(ctx context.Context, id uint64) (*Submission, error) {
	query := `
		SELECT id, "user", hash, ts, height, device_id,
		       steps, heart_rate_avg, calories, distance,
		       gps_data, metadata, session_nonce, fraud_score, status
		FROM submissions WHERE id = $1`

	s := &Submission{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.User, &s.Hash, &s.Timestamp, &s.Height, &s.DeviceID,
		&s.Steps, &s.HeartRateAvg, &s.Calories, &s.Distance,
		&s.GPSData, &s.Metadata, &s.SessionNonce, &s.FraudScore, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	s.Status = SubmissionStatus(status)
	return s, nil
}

// ListSubmissionsByUser retrieves all submissions for a user ordered by id.
func (r *PostgresRepository) ListSubmissionsByUser(ctx context.Context, user string) ([]*Submission, error) {
	query := `
		SELECT id, "user", hash, ts, height, device_id,
		       steps, heart_rate_avg, calories, distance,
		       gps_data, metadata, session_nonce, fraud_score, status
		FROM submissions WHERE "user" = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*Submission
	for rows.Next() {
		s := &Submission{}
		var status string
		if err := rows.Scan(
			&s.ID, &s.User, &s.Hash, &s.Timestamp, &s.Height, &s.DeviceID,
			&s.Steps, &s.HeartRateAvg, &s.Calories, &s.Distance,
			&s.GPSData, &s.Metadata, &s.SessionNonce, &s.FraudScore, &status); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		s.Status = SubmissionStatus(status)
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// SaveFraudRecord upserts a user's fraud record. History entries are stored
// in a child table keyed by position.
func (r *PostgresRepository) SaveFraudRecord(ctx context.Context, record *FraudRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO fraud_records ("user", cumulative_score, banned)
		VALUES ($1, $2, $3)
		ON CONFLICT ("user") DO UPDATE SET
			cumulative_score = EXCLUDED.cumulative_score,
			banned = EXCLUDED.banned`
	if _, err := tx.Exec(ctx, query, record.User, record.CumulativeScore, record.Banned); err != nil {
		return fmt.Errorf("saving fraud record: %w", translateError(err))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM fraud_history WHERE "user" = $1`, record.User); err != nil {
		return fmt.Errorf("clearing fraud history: %w", err)
	}
	for i, entry := range record.History {
		if _, err := tx.Exec(ctx,
			`INSERT INTO fraud_history ("user", position, ts, score, flagged) VALUES ($1, $2, $3, $4, $5)`,
			record.User, i, entry.Timestamp, entry.Score, entry.Flagged); err != nil {
			return fmt.Errorf("saving fraud history entry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetFraudRecord retrieves a user's fraud record with its history.
func (r *PostgresRepository) GetFraudRecord(ctx context.Context, user string) (*FraudRecord, error) {
	record := &FraudRecord{User: user}
	err := r.pool.QueryRow(ctx,
		`SELECT cumulative_score, banned FROM fraud_records WHERE "user" = $1`, user).
		Scan(&record.CumulativeScore, &record.Banned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting fraud record: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ts, score, flagged FROM fraud_history WHERE "user" = $1 ORDER BY position`, user)
	if err != nil {
		return nil, fmt.Errorf("listing fraud history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry DetectionEntry
		if err := rows.Scan(&entry.Timestamp, &entry.Score, &entry.Flagged); err != nil {
			return nil, fmt.Errorf("scanning fraud history entry: %w", err)
		}
		record.History = append(record.History, entry)
	}
	return record, rows.Err()
}

// translateError maps database errors to repository sentinels.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
