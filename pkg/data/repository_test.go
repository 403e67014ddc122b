package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Oracles(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetOracle(ctx, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	oracle := &Oracle{ID: 0, Owner: "ST1ORACLE", Stake: 1_000_000, Active: true}
	require.NoError(t, repo.SaveOracle(ctx, oracle))

	got, err := repo.GetOracle(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, oracle, got)

	// Saving again overwrites.
	oracle.Reputation = 5
	require.NoError(t, repo.SaveOracle(ctx, oracle))
	got, err = repo.GetOracle(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Reputation)

	list, err := repo.ListOracles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryRepository_Requests(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	active := &ValidationRequest{ID: 0, SubmissionID: 1, Status: RequestActive}
	done := &ValidationRequest{ID: 1, SubmissionID: 2, Status: RequestFinalized, Outcome: OutcomeValidated}
	require.NoError(t, repo.SaveRequest(ctx, active))
	require.NoError(t, repo.SaveRequest(ctx, done))

	got, err := repo.GetRequest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValidated, got.Outcome)

	open, err := repo.ListActiveRequests(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, uint64(0), open[0].ID)
}

func TestMemoryRepository_Responses(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	resp := &OracleResponse{RequestID: 0, OracleID: 3, Valid: true, Confidence: 90}
	require.NoError(t, repo.SaveResponse(ctx, resp))

	// Same (request, oracle) key updates in place.
	resp.Processed = true
	require.NoError(t, repo.SaveResponse(ctx, resp))

	got, err := repo.GetResponsesByRequest(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Processed)
}

func TestMemoryRepository_Submissions(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	sub := &Submission{ID: 0, User: "ST1USER", Steps: 10000, Status: SubmissionPending}
	require.NoError(t, repo.SaveSubmission(ctx, sub))

	got, err := repo.GetSubmission(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "ST1USER", got.User)

	byUser, err := repo.ListSubmissionsByUser(ctx, "ST1USER")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	none, err := repo.ListSubmissionsByUser(ctx, "ST1OTHER")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository_FraudRecords(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	record := &FraudRecord{
		User:            "ST1USER",
		CumulativeScore: 80,
		Banned:          true,
		History:         []DetectionEntry{{Timestamp: 100, Score: 80, Flagged: true}},
	}
	require.NoError(t, repo.SaveFraudRecord(ctx, record))

	got, err := repo.GetFraudRecord(ctx, "ST1USER")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	// The stored record is a copy.
	record.History[0].Score = 0
	got, err = repo.GetFraudRecord(ctx, "ST1USER")
	require.NoError(t, err)
	assert.Equal(t, uint32(80), got.History[0].Score)

	_, err = repo.GetFraudRecord(ctx, "ST1OTHER")
	assert.ErrorIs(t, err, ErrNotFound)
}
