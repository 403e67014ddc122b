package data

const (
	// HashLength is the required length of a submission content hash.
	HashLength = 32
	// DeviceIDLength is the required length of a device identifier.
	DeviceIDLength = 16
)

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionVerified SubmissionStatus = "verified"
	SubmissionFlagged  SubmissionStatus = "flagged"
	SubmissionRejected SubmissionStatus = "rejected"
)

// RequestStatus represents the lifecycle state of a validation request.
// Transitions are monotonic: active -> finalized or active -> expired.
type RequestStatus string

const (
	RequestActive    RequestStatus = "active"
	RequestFinalized RequestStatus = "finalized"
	RequestExpired   RequestStatus = "expired"
)

// Outcome is the consensus decision of a finalized request.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeValidated Outcome = "validated"
	OutcomeRejected  Outcome = "rejected"
)

// Submission is a single recorded activity session. Metric fields are kept
// unsigned; intake enforces upper bounds only.
type Submission struct {
	ID           uint64           `json:"id"`
	User         string           `json:"user"`
	Hash         []byte           `json:"hash"`
	Timestamp    uint64           `json:"timestamp"`
	Height       uint64           `json:"height"`
	DeviceID     []byte           `json:"device_id"`
	Steps        uint32           `json:"steps"`
	HeartRateAvg uint32           `json:"heart_rate_avg"`
	Calories     uint32           `json:"calories"`
	Distance     uint32           `json:"distance"`
	GPSData      []byte           `json:"gps_data,omitempty"`
	Metadata     []byte           `json:"metadata,omitempty"`
	SessionNonce uint64           `json:"session_nonce"`
	FraudScore   uint32           `json:"fraud_score"`
	Status       SubmissionStatus `json:"status"`
}

// Oracle is a staked, registered validator identity.
type Oracle struct {
	ID               uint64 `json:"id"`
	Owner            string `json:"owner"`
	Stake            uint64 `json:"stake"`
	Reputation       int64  `json:"reputation"`
	Active           bool   `json:"active"`
	RegisteredAt     uint64 `json:"registered_at"`
	LastResponseAt   uint64 `json:"last_response_at"`
	TotalResponses   uint64 `json:"total_responses"`
	CorrectResponses uint64 `json:"correct_responses"`
}

// ValidationRequest is one open question under consensus, tied 1:1 to a
// submission.
type ValidationRequest struct {
	ID                   uint64        `json:"id"`
	SubmissionID         uint64        `json:"submission_id"`
	Status               RequestStatus `json:"status"`
	CreatedAt            uint64        `json:"created_at"`
	Deadline             uint64        `json:"deadline"`
	TotalOraclesExpected uint32        `json:"total_oracles_expected"`
	ResponsesReceived    uint32        `json:"responses_received"`
	ValidCount           uint32        `json:"valid_count"`
	InvalidCount         uint32        `json:"invalid_count"`
	Outcome              Outcome       `json:"outcome,omitempty"`
}

// ResponseSignals are the sub-signals informing an oracle's vote.
type ResponseSignals struct {
	GPSVerified      bool `json:"gps_verified"`
	HRConsistency    bool `json:"hr_consistency"`
	StepPlausibility bool `json:"step_plausibility"`
}

// OracleResponse is one oracle's vote on one request. (RequestID, OracleID)
// is a unique key; the record is immutable after creation except for the
// Processed flag set during finalization.
type OracleResponse struct {
	RequestID  uint64          `json:"request_id"`
	OracleID   uint64          `json:"oracle_id"`
	Valid      bool            `json:"valid"`
	Confidence uint32          `json:"confidence"`
	Signals    ResponseSignals `json:"signals"`
	Timestamp  uint64          `json:"timestamp"`
	Processed  bool            `json:"processed"`
}

// DetectionEntry is one scoring outcome in a user's sliding history.
type DetectionEntry struct {
	Timestamp uint64 `json:"timestamp"`
	Score     uint32 `json:"score"`
	Flagged   bool   `json:"flagged"`
}

// FraudRecord is per-user anomaly scoring state. History holds at most the
// 10 most recent entries, oldest evicted first.
type FraudRecord struct {
	User            string           `json:"user"`
	CumulativeScore uint64           `json:"cumulative_score"`
	Banned          bool             `json:"banned"`
	History         []DetectionEntry `json:"history"`
}

// Clone returns a defensive copy of the record.
func (r *FraudRecord) Clone() *FraudRecord {
	out := *r
	out.History = append([]DetectionEntry(nil), r.History...)
	return &out
}

// Clone returns a defensive copy of the submission.
func (s *Submission) Clone() *Submission {
	out := *s
	out.Hash = append([]byte(nil), s.Hash...)
	out.DeviceID = append([]byte(nil), s.DeviceID...)
	out.GPSData = append([]byte(nil), s.GPSData...)
	out.Metadata = append([]byte(nil), s.Metadata...)
	return &out
}

// Expired reports whether the request deadline has passed at the given
// logical height. Deadlines are evaluated lazily against a caller-supplied
// height, never an internal clock.
func (r *ValidationRequest) Expired(height uint64) bool {
	return height > r.Deadline
}
