package submission

import (
	"sync"

	"go.uber.org/zap"

	"fitness_attest/pkg/data"
	"fitness_attest/pkg/identity"
)

// Intake limits. Tighter than the scoring ranges: a submission can pass
// intake and still be scored anomalous against the wider plausibility
// bounds.
const (
	MaxSteps       = 30000
	MinHeartRate   = 40
	MaxHeartRate   = 220
	MaxCalories    = 5000
	MaxDistance    = 50
	MaxGPSBytes    = 128
	MaxMetadata    = 256
	TimestampDrift = 10
	UserIndexLimit = 50
)

// BanChecker reports whether a user is banned from submitting. Implemented
// by the fraud detector.
type BanChecker interface {
	Banned(user string) bool
}

// SubmitParams carries the fields of one incoming activity record.
type SubmitParams struct {
	Hash         []byte
	Timestamp    uint64
	DeviceID     []byte
	Steps        uint32
	HeartRateAvg uint32
	Calories     uint32
	Distance     uint32
	GPSData      []byte
	Metadata     []byte
	SessionNonce uint64
}

// Store owns submission records: intake validation, hash dedup, per-user
// session nonces and a bounded per-user index.
type Store struct {
	auth identity.Authorizer
	bans BanChecker

	nextID      uint64
	submissions map[uint64]*data.Submission
	byHash      map[string]uint64
	byUser      map[string][]uint64
	nonces      map[string]uint64
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewStore creates an empty submission store.
func NewStore(auth identity.Authorizer, bans BanChecker, logger *zap.Logger) *Store {
	return &Store{
		auth:        auth,
		bans:        bans,
		submissions: make(map[uint64]*data.Submission),
		byHash:      make(map[string]uint64),
		byUser:      make(map[string][]uint64),
		nonces:      make(map[string]uint64),
		logger:      logger,
	}
}

// Submit validates and records an activity submission. Checks run in a
// fixed order, the first failure wins and nothing is recorded. The session
// nonce must advance by exactly one per submission, which blocks replays.
func (s *Store) Submit(caller string, params SubmitParams, now uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(params.Hash) != data.HashLength {
		return 0, data.ErrInvalidHash
	}
	if params.Timestamp < now || params.Timestamp > now+TimestampDrift {
		return 0, data.ErrInvalidTimestamp
	}
	if len(params.DeviceID) != data.DeviceIDLength {
		return 0, data.ErrInvalidDeviceID
	}
	if params.Steps > MaxSteps {
		return 0, data.ErrInvalidSteps
	}
	if params.HeartRateAvg < MinHeartRate || params.HeartRateAvg > MaxHeartRate {
		return 0, data.ErrInvalidHeartRate
	}
	if params.Calories > MaxCalories {
		return 0, data.ErrInvalidCalories
	}
	if params.Distance > MaxDistance {
		return 0, data.ErrInvalidDistance
	}
	if len(params.GPSData) > MaxGPSBytes {
		return 0, data.ErrInvalidGPS
	}
	if len(params.Metadata) > MaxMetadata {
		return 0, data.ErrMetadataTooLarge
	}
	if params.SessionNonce != s.nonces[caller]+1 {
		return 0, data.ErrInvalidNonce
	}
	if _, dup := s.byHash[string(params.Hash)]; dup {
		return 0, data.ErrSubmissionExists
	}
	if s.bans != nil && s.bans.Banned(caller) {
		return 0, data.ErrUserBanned
	}

	id := s.nextID
	sub := &data.Submission{
		ID:           id,
		User:         caller,
		Hash:         append([]byte(nil), params.Hash...),
		Timestamp:    params.Timestamp,
		Height:       now,
		DeviceID:     append([]byte(nil), params.DeviceID...),
		Steps:        params.Steps,
		HeartRateAvg: params.HeartRateAvg,
		Calories:     params.Calories,
		Distance:     params.Distance,
		GPSData:      append([]byte(nil), params.GPSData...),
		Metadata:     append([]byte(nil), params.Metadata...),
		SessionNonce: params.SessionNonce,
		Status:       data.SubmissionPending,
	}
	s.submissions[id] = sub
	s.byHash[string(params.Hash)] = id

	index := append(s.byUser[caller], id)
	if len(index) > UserIndexLimit {
		index = index[len(index)-UserIndexLimit:]
	}
	s.byUser[caller] = index
	s.nonces[caller] = params.SessionNonce
	s.nextID++

	s.logger.Info("Submission recorded",
		zap.Uint64("submissionID", id),
		zap.String("user", caller),
		zap.Uint32("steps", params.Steps))
	return id, nil
}

// UpdateStatus transitions a submission out of pending. Admin-only; only
// verified, flagged and rejected are accepted targets.
func (s *Store) UpdateStatus(caller string, id uint64, status data.SubmissionStatus) error {
	if !s.auth.IsAdmin(caller) {
		return data.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return data.ErrSubmissionNotFound
	}
	switch status {
	case data.SubmissionVerified, data.SubmissionFlagged, data.SubmissionRejected:
	default:
		return data.ErrInvalidStatus
	}
	sub.Status = status

	s.logger.Info("Submission status updated",
		zap.Uint64("submissionID", id),
		zap.String("status", string(status)))
	return nil
}

// SetFraudScore stores the anomaly score computed for a submission.
func (s *Store) SetFraudScore(id uint64, score uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return data.ErrSubmissionNotFound
	}
	sub.FraudScore = score
	return nil
}

// Get returns a snapshot of a submission.
func (s *Store) Get(id uint64) (*data.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, data.ErrSubmissionNotFound
	}
	return sub.Clone(), nil
}

// UserSubmissions returns the bounded index of a user's submission ids,
// oldest first.
func (s *Store) UserSubmissions(user string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint64(nil), s.byUser[user]...)
}

// Export returns snapshots of all submissions ordered by id, for
// persistence.
func (s *Store) Export() []*data.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*data.Submission, 0, len(s.submissions))
	for id := uint64(0); id < s.nextID; id++ {
		if sub, ok := s.submissions[id]; ok {
			out = append(out, sub.Clone())
		}
	}
	return out
}

// Count returns the total number of submissions ever recorded.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}
