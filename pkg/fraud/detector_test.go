package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitness_attest/pkg/data"
	"fitness_attest/pkg/identity"
)

const (
	adminUser   = "ST1ADMIN"
	regularUser = "ST1USER"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	auth := identity.NewStaticAuthorizer(adminUser)
	d, err := NewDetector(auth, zap.NewNop(), 70, 2)
	require.NoError(t, err)
	return d
}

func plausibleSubmission(user string) *data.Submission {
	return &data.Submission{
		ID:           1,
		User:         user,
		Steps:        10000,
		HeartRateAvg: 80,
		Calories:     2000,
		Distance:     10,
	}
}

func TestDetector_Score_CleanSubmission(t *testing.T) {
	d := newTestDetector(t)

	score, err := d.Score(adminUser, plausibleSubmission(regularUser), 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), score)

	record := d.Record(regularUser)
	assert.False(t, record.Banned)
	assert.Len(t, record.History, 1)
	assert.False(t, record.History[0].Flagged)
}

func TestDetector_Score_FraudDetected(t *testing.T) {
	d := newTestDetector(t)

	// Two metrics out of range: raw penalty 40, scaled by factor 2 -> 80.
	sub := plausibleSubmission(regularUser)
	sub.Steps = 60000
	sub.HeartRateAvg = 300

	score, err := d.Score(adminUser, sub, 100)
	assert.ErrorIs(t, err, data.ErrFraudDetected)
	assert.Equal(t, uint32(80), score)

	record := d.Record(regularUser)
	assert.True(t, record.Banned)
	assert.Equal(t, uint64(80), record.CumulativeScore)
	require.Len(t, record.History, 1)
	assert.True(t, record.History[0].Flagged)
	assert.Equal(t, uint32(80), record.History[0].Score)
	assert.True(t, d.Banned(regularUser))
}

func TestDetector_Score_Unauthorized(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Score(regularUser, plausibleSubmission(regularUser), 100)
	assert.ErrorIs(t, err, data.ErrUnauthorized)
	assert.Empty(t, d.Record(regularUser).History)
}

func TestDetector_Score_DecaysCumulativeScore(t *testing.T) {
	d := newTestDetector(t)

	// Build up a score of 80 with one flagged submission, then decay it
	// with clean ones. The score must floor at 0, never go negative.
	sub := plausibleSubmission(regularUser)
	sub.Steps = 60000
	sub.HeartRateAvg = 300
	_, err := d.Score(adminUser, sub, 100)
	require.ErrorIs(t, err, data.ErrFraudDetected)

	for i := 0; i < 12; i++ {
		_, err := d.Score(adminUser, plausibleSubmission(regularUser), uint64(101+i))
		require.NoError(t, err)
	}

	record := d.Record(regularUser)
	assert.Equal(t, uint64(0), record.CumulativeScore)
}

func TestDetector_Score_HistoryBounded(t *testing.T) {
	d := newTestDetector(t)

	for i := 0; i < 12; i++ {
		_, err := d.Score(adminUser, plausibleSubmission(regularUser), uint64(100+i))
		require.NoError(t, err)
	}

	record := d.Record(regularUser)
	assert.Len(t, record.History, HistoryLimit)
	// Oldest entries evicted first: the window starts at the third call.
	assert.Equal(t, uint64(102), record.History[0].Timestamp)
	assert.Equal(t, uint64(111), record.History[9].Timestamp)
}

func TestDetector_SetThreshold(t *testing.T) {
	d := newTestDetector(t)

	require.NoError(t, d.SetThreshold(adminUser, 80))
	assert.ErrorIs(t, d.SetThreshold(adminUser, 0), data.ErrInvalidFraudThreshold)
	assert.ErrorIs(t, d.SetThreshold(adminUser, 101), data.ErrInvalidFraudThreshold)
	assert.ErrorIs(t, d.SetThreshold(regularUser, 50), data.ErrUnauthorized)

	// With the threshold at 80 a score of exactly 80 still bans.
	sub := plausibleSubmission(regularUser)
	sub.Steps = 60000
	sub.HeartRateAvg = 300
	_, err := d.Score(adminUser, sub, 100)
	assert.ErrorIs(t, err, data.ErrFraudDetected)
}

func TestDetector_SetFactor(t *testing.T) {
	d := newTestDetector(t)

	require.NoError(t, d.SetFactor(adminUser, 3))
	assert.ErrorIs(t, d.SetFactor(adminUser, 0), data.ErrInvalidAnomalyFactor)
	assert.ErrorIs(t, d.SetFactor(regularUser, 3), data.ErrUnauthorized)

	// One violation: penalty 20 * factor 3 = 60, below threshold 70.
	sub := plausibleSubmission(regularUser)
	sub.Steps = 60000
	score, err := d.Score(adminUser, sub, 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(60), score)
}

func TestDetector_Unban(t *testing.T) {
	d := newTestDetector(t)

	sub := plausibleSubmission(regularUser)
	sub.Steps = 60000
	sub.HeartRateAvg = 300
	_, err := d.Score(adminUser, sub, 100)
	require.ErrorIs(t, err, data.ErrFraudDetected)
	require.True(t, d.Banned(regularUser))

	assert.ErrorIs(t, d.Unban(regularUser, regularUser), data.ErrUnauthorized)
	require.NoError(t, d.Unban(adminUser, regularUser))
	assert.False(t, d.Banned(regularUser))

	assert.ErrorIs(t, d.Unban(adminUser, "unknown"), data.ErrNotFound)
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	auth := identity.NewStaticAuthorizer(adminUser)

	_, err := NewDetector(auth, zap.NewNop(), 0, 2)
	assert.ErrorIs(t, err, data.ErrInvalidFraudThreshold)

	_, err = NewDetector(auth, zap.NewNop(), 70, 0)
	assert.ErrorIs(t, err, data.ErrInvalidAnomalyFactor)
}
