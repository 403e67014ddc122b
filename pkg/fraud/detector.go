package fraud

import (
	"sync"

	"go.uber.org/zap"

	"fitness_attest/pkg/data"
	"fitness_attest/pkg/identity"
)

// Plausible metric ranges for scoring. Each violated range contributes a
// fixed penalty unit before the anomaly factor is applied.
const (
	MaxSteps     = 50000
	MinHeartRate = 40
	MaxHeartRate = 220
	MaxCalories  = 10000
	MaxDistance  = 100

	MetricPenalty = 20
	ScoreDecay    = 10
	HistoryLimit  = 10
)

// Detector is the deterministic anomaly scoring engine. It owns per-user
// fraud records keyed by user identity, independent of the request
// lifecycle.
type Detector struct {
	auth      identity.Authorizer
	threshold uint32
	factor    uint32
	records   map[string]*data.FraudRecord
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewDetector creates a detector with the given threshold and factor.
func NewDetector(auth identity.Authorizer, logger *zap.Logger, threshold, factor uint32) (*Detector, error) {
	if threshold == 0 || threshold > 100 {
		return nil, data.ErrInvalidFraudThreshold
	}
	if factor == 0 {
		return nil, data.ErrInvalidAnomalyFactor
	}
	return &Detector{
		auth:      auth,
		threshold: threshold,
		factor:    factor,
		records:   make(map[string]*data.FraudRecord),
		logger:    logger,
	}, nil
}

// Score computes the anomaly score of a submission and folds it into the
// submitting user's fraud record. When the score reaches the fraud threshold
// the user is banned and the call fails with ErrFraudDetected, blocking any
// further processing of that submission. Otherwise the cumulative score
// decays and the raw score is returned.
func (d *Detector) Score(caller string, sub *data.Submission, now uint64) (uint32, error) {
	if !d.auth.IsAdmin(caller) {
		return 0, data.ErrUnauthorized
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	score := d.anomalyScore(sub)
	record := d.record(sub.User)

	if score >= d.threshold {
		record.Banned = true
		record.CumulativeScore += uint64(score)
		pushHistory(record, data.DetectionEntry{Timestamp: now, Score: score, Flagged: true})

		d.logger.Warn("Fraud detected",
			zap.String("user", sub.User),
			zap.Uint64("submissionID", sub.ID),
			zap.Uint32("score", score),
			zap.Uint64("cumulativeScore", record.CumulativeScore))
		return score, data.ErrFraudDetected
	}

	if record.CumulativeScore > ScoreDecay {
		record.CumulativeScore -= ScoreDecay
	} else {
		record.CumulativeScore = 0
	}
	pushHistory(record, data.DetectionEntry{Timestamp: now, Score: score, Flagged: false})

	return score, nil
}

// SetThreshold updates the fraud threshold. Admin-only; values outside
// (0,100] are rejected.
func (d *Detector) SetThreshold(caller string, threshold uint32) error {
	if !d.auth.IsAdmin(caller) {
		return data.ErrUnauthorized
	}
	if threshold == 0 || threshold > 100 {
		return data.ErrInvalidFraudThreshold
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold

	d.logger.Info("Fraud threshold updated", zap.Uint32("threshold", threshold))
	return nil
}

// SetFactor updates the anomaly factor. Admin-only; must be positive.
func (d *Detector) SetFactor(caller string, factor uint32) error {
	if !d.auth.IsAdmin(caller) {
		return data.ErrUnauthorized
	}
	if factor == 0 {
		return data.ErrInvalidAnomalyFactor
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.factor = factor

	d.logger.Info("Anomaly factor updated", zap.Uint32("factor", factor))
	return nil
}

// Banned reports whether a user is currently banned.
func (d *Detector) Banned(user string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	record, ok := d.records[user]
	return ok && record.Banned
}

// Record returns a snapshot of the user's fraud record. Users never scored
// get an empty record.
func (d *Detector) Record(user string) *data.FraudRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	record, ok := d.records[user]
	if !ok {
		return &data.FraudRecord{User: user}
	}
	return record.Clone()
}

// Unban clears a user's banned flag. Admin-only.
func (d *Detector) Unban(caller, user string) error {
	if !d.auth.IsAdmin(caller) {
		return data.ErrUnauthorized
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	record, ok := d.records[user]
	if !ok {
		return data.ErrNotFound
	}
	record.Banned = false

	d.logger.Info("User unbanned", zap.String("user", user))
	return nil
}

// Export returns snapshots of all fraud records for persistence.
func (d *Detector) Export() []*data.FraudRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*data.FraudRecord, 0, len(d.records))
	for _, record := range d.records {
		out = append(out, record.Clone())
	}
	return out
}

// Private methods

// anomalyScore sums a fixed penalty per out-of-range metric and scales by
// the anomaly factor.
func (d *Detector) anomalyScore(sub *data.Submission) uint32 {
	var penalty uint32
	if sub.Steps > MaxSteps {
		penalty += MetricPenalty
	}
	if sub.HeartRateAvg < MinHeartRate || sub.HeartRateAvg > MaxHeartRate {
		penalty += MetricPenalty
	}
	if sub.Calories > MaxCalories {
		penalty += MetricPenalty
	}
	if sub.Distance > MaxDistance {
		penalty += MetricPenalty
	}
	return penalty * d.factor
}

// record returns the live record for a user, creating it on first use.
// Caller must hold the write lock.
func (d *Detector) record(user string) *data.FraudRecord {
	record, ok := d.records[user]
	if !ok {
		record = &data.FraudRecord{User: user}
		d.records[user] = record
	}
	return record
}

// pushHistory appends an entry, evicting the oldest past HistoryLimit.
func pushHistory(record *data.FraudRecord, entry data.DetectionEntry) {
	record.History = append(record.History, entry)
	if len(record.History) > HistoryLimit {
		record.History = record.History[len(record.History)-HistoryLimit:]
	}
}
