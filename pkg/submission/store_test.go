package submission

import (
	"bytes"
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

// stubBans marks a fixed set of users as banned.
type stubBans map[string]bool

func (b stubBans) Banned(user string) bool { return b[user] }

func newTestStore(t *testing.T, bans stubBans) *Store {
	t.Helper()
	auth := identity.NewStaticAuthorizer(adminUser)
	return NewStore(auth, bans, zap.NewNop())
}

func validParams(nonce uint64, now uint64) SubmitParams {
	hash := bytes.Repeat([]byte{byte(nonce)}, data.HashLength)
	return SubmitParams{
		Hash:         hash,
		Timestamp:    now + 1,
		DeviceID:     bytes.Repeat([]byte{0xAB}, data.DeviceIDLength),
		Steps:        10000,
		HeartRateAvg: 80,
		Calories:     2000,
		Distance:     10,
		GPSData:      []byte(`{"lat":1.0}`),
		Metadata:     []byte(`{"app":"tracker"}`),
		SessionNonce: nonce,
	}
}

func TestStore_Submit(t *testing.T) {
	s := newTestStore(t, nil)

	id, err := s.Submit(regularUser, validParams(1, 100), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	sub, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, regularUser, sub.User)
	assert.Equal(t, data.SubmissionPending, sub.Status)
	assert.Equal(t, uint64(100), sub.Height)
	assert.Equal(t, uint64(1), sub.SessionNonce)

	assert.Equal(t, []uint64{0}, s.UserSubmissions(regularUser))
	assert.Equal(t, uint64(1), s.Count())
}

func TestStore_Submit_ValidationOrder(t *testing.T) {
	s := newTestStore(t, nil)
	now := uint64(100)

	cases := []struct {
		name   string
		mutate func(*SubmitParams)
		err    error
	}{
		{"short hash", func(p *SubmitParams) { p.Hash = p.Hash[:31] }, data.ErrInvalidHash},
		{"stale timestamp", func(p *SubmitParams) { p.Timestamp = now - 1 }, data.ErrInvalidTimestamp},
		{"far future timestamp", func(p *SubmitParams) { p.Timestamp = now + TimestampDrift + 1 }, data.ErrInvalidTimestamp},
		{"bad device id", func(p *SubmitParams) { p.DeviceID = p.DeviceID[:8] }, data.ErrInvalidDeviceID},
		{"too many steps", func(p *SubmitParams) { p.Steps = MaxSteps + 1 }, data.ErrInvalidSteps},
		{"heart rate too low", func(p *SubmitParams) { p.HeartRateAvg = MinHeartRate - 1 }, data.ErrInvalidHeartRate},
		{"heart rate too high", func(p *SubmitParams) { p.HeartRateAvg = MaxHeartRate + 1 }, data.ErrInvalidHeartRate},
		{"too many calories", func(p *SubmitParams) { p.Calories = MaxCalories + 1 }, data.ErrInvalidCalories},
		{"distance too far", func(p *SubmitParams) { p.Distance = MaxDistance + 1 }, data.ErrInvalidDistance},
		{"gps too large", func(p *SubmitParams) { p.GPSData = bytes.Repeat([]byte{1}, MaxGPSBytes+1) }, data.ErrInvalidGPS},
		{"metadata too large", func(p *SubmitParams) { p.Metadata = bytes.Repeat([]byte{1}, MaxMetadata+1) }, data.ErrMetadataTooLarge},
		{"nonce gap", func(p *SubmitParams) { p.SessionNonce = 2 }, data.ErrInvalidNonce},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams(1, now)
			tc.mutate(&params)
			_, err := s.Submit(regularUser, params, now)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	// Nothing was recorded by the failed attempts.
	assert.Equal(t, uint64(0), s.Count())
}

func TestStore_Submit_DuplicateHash(t *testing.T) {
	s := newTestStore(t, nil)

	params := validParams(1, 100)
	_, err := s.Submit(regularUser, params, 100)
	require.NoError(t, err)

	// Same hash from another user, everything else fine.
	dup := validParams(1, 100)
	dup.Hash = params.Hash
	_, err = s.Submit("ST1OTHER", dup, 100)
	assert.ErrorIs(t, err, data.ErrSubmissionExists)
}

func TestStore_Submit_NonceReplay(t *testing.T) {
	s := newTestStore(t, nil)

	_, err := s.Submit(regularUser, validParams(1, 100), 100)
	require.NoError(t, err)

	// Replaying the consumed nonce fails even with a fresh hash.
	replay := validParams(1, 100)
	replay.Hash = bytes.Repeat([]byte{0x77}, data.HashLength)
	_, err = s.Submit(regularUser, replay, 100)
	assert.ErrorIs(t, err, data.ErrInvalidNonce)

	_, err = s.Submit(regularUser, validParams(2, 100), 100)
	require.NoError(t, err)
}

func TestStore_Submit_BannedUser(t *testing.T) {
	s := newTestStore(t, stubBans{regularUser: true})

	_, err := s.Submit(regularUser, validParams(1, 100), 100)
	assert.ErrorIs(t, err, data.ErrUserBanned)

	// The ban check runs last: the nonce was not consumed.
	_, err = s.Submit("ST1OTHER", validParams(1, 100), 100)
	require.NoError(t, err)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := newTestStore(t, nil)

	id, err := s.Submit(regularUser, validParams(1, 100), 100)
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateStatus(regularUser, id, data.SubmissionVerified), data.ErrUnauthorized)
	assert.ErrorIs(t, s.UpdateStatus(adminUser, 99, data.SubmissionVerified), data.ErrSubmissionNotFound)
	assert.ErrorIs(t, s.UpdateStatus(adminUser, id, data.SubmissionPending), data.ErrInvalidStatus)
	assert.ErrorIs(t, s.UpdateStatus(adminUser, id, "bogus"), data.ErrInvalidStatus)

	require.NoError(t, s.UpdateStatus(adminUser, id, data.SubmissionVerified))
	sub, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, data.SubmissionVerified, sub.Status)
}

func TestStore_SetFraudScore(t *testing.T) {
	s := newTestStore(t, nil)

	id, err := s.Submit(regularUser, validParams(1, 100), 100)
	require.NoError(t, err)

	require.NoError(t, s.SetFraudScore(id, 40))
	sub, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), sub.FraudScore)

	assert.ErrorIs(t, s.SetFraudScore(99, 40), data.ErrSubmissionNotFound)
}

func TestStore_UserIndexBounded(t *testing.T) {
	s := newTestStore(t, nil)

	for nonce := uint64(1); nonce <= UserIndexLimit+5; nonce++ {
		hash := bytes.Repeat([]byte{byte(nonce), byte(nonce >> 8)}, data.HashLength/2)
		params := validParams(nonce, 100)
		params.Hash = hash
		_, err := s.Submit(regularUser, params, 100)
		require.NoError(t, err)
	}

	index := s.UserSubmissions(regularUser)
	require.Len(t, index, UserIndexLimit)
	// The index is a sliding window over the newest ids, oldest first.
	assert.Equal(t, uint64(5), index[0])
	assert.Equal(t, uint64(UserIndexLimit+4), index[UserIndexLimit-1])

	// Evicted submissions remain retrievable by id.
	_, err := s.Get(0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(UserIndexLimit+5), s.Count())
}

func TestStore_Export(t *testing.T) {
	s := newTestStore(t, nil)

	_, err := s.Submit(regularUser, validParams(1, 100), 100)
	require.NoError(t, err)
	_, err = s.Submit(regularUser, validParams(2, 100), 100)
	require.NoError(t, err)

	out := s.Export()
	require.Len(t, out, 2)
	assert.Equal(t, uint64(0), out[0].ID)
	assert.Equal(t, uint64(1), out[1].ID)
}
