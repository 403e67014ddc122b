package consensus

import (
	"sync"

	"go.uber.org/zap"

	"fitness_attest/pkg/data"
	"fitness_attest/pkg/identity"
	"fitness_attest/pkg/oracle"
)

// Engine owns the validation request lifecycle: creation, response
// aggregation and quorum finalization. Operations on the same request are
// linearized under the engine lock so the tally invariant
// responsesReceived == validCount + invalidCount always holds. Deadlines are
// evaluated lazily against the logical height passed into every operation;
// there is no background timer.
type Engine struct {
	auth     identity.Authorizer
	registry *oracle.Registry

	responseTimeout uint64
	minConfidence   uint32
	quorumThreshold uint32

	nextID       uint64
	requests     map[uint64]*data.ValidationRequest
	responses    map[responseKey]*data.OracleResponse
	byRequest    map[uint64][]uint64
	bySubmission map[uint64]uint64

	metrics *Metrics
	logger  *zap.Logger
	mu      sync.RWMutex
}

// responseKey uniquely identifies one oracle's response to one request.
type responseKey struct {
	requestID uint64
	oracleID  uint64
}

// Config carries the consensus parameters.
type Config struct {
	ResponseTimeout uint64
	MinConfidence   uint32
	QuorumThreshold uint32
}

// NewEngine creates a consensus engine.
func NewEngine(auth identity.Authorizer, registry *oracle.Registry, logger *zap.Logger, cfg Config) *Engine {
	return &Engine{
		auth:            auth,
		registry:        registry,
		responseTimeout: cfg.ResponseTimeout,
		minConfidence:   cfg.MinConfidence,
		quorumThreshold: cfg.QuorumThreshold,
		requests:        make(map[uint64]*data.ValidationRequest),
		responses:       make(map[responseKey]*data.OracleResponse),
		byRequest:       make(map[uint64][]uint64),
		bySubmission:    make(map[uint64]uint64),
		metrics:         NewMetrics(),
		logger:          logger,
	}
}

// CreateRequest opens a validation request for a submission. Admin-only;
// at most one request may ever exist per submission.
func (e *Engine) CreateRequest(caller string, submissionID uint64, now uint64) (uint64, error) {
	if !e.auth.IsAdmin(caller) {
		return 0, data.ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.bySubmission[submissionID]; exists {
		return 0, data.ErrInvalidSubmissionID
	}

	id := e.nextID
	e.requests[id] = &data.ValidationRequest{
		ID:           id,
		SubmissionID: submissionID,
		Status:       data.RequestActive,
		CreatedAt:    now,
		Deadline:     now + e.responseTimeout,
	}
	e.bySubmission[submissionID] = id
	e.nextID++
	e.metrics.IncrementRequestsCreated()

	e.logger.Info("Validation request created",
		zap.Uint64("requestID", id),
		zap.Uint64("submissionID", submissionID),
		zap.Uint64("deadline", now+e.responseTimeout))
	return id, nil
}

// SetPanelSize sets the expected panel size used as the early finalization
// trigger. Admin-only.
func (e *Engine) SetPanelSize(caller string, requestID uint64, count uint32) error {
	if !e.auth.IsAdmin(caller) {
		return data.ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.requests[requestID]
	if !ok {
		return data.ErrSubmissionNotFound
	}
	req.TotalOraclesExpected = count
	return nil
}

// SubmitResponse records one oracle's vote on a request. Admission checks
// run in a fixed order and the first failing check wins; a rejected response
// leaves the tallies untouched. Each oracle votes exactly once per request.
func (e *Engine) SubmitResponse(caller string, requestID uint64, valid bool, confidence uint32, signals data.ResponseSignals, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.requests[requestID]
	if !ok {
		e.metrics.IncrementResponsesRejected()
		return data.ErrSubmissionNotFound
	}

	voter, err := e.registry.Lookup(caller)
	if err != nil {
		e.metrics.IncrementResponsesRejected()
		return data.ErrOracleNotFound
	}
	if !voter.Active {
		e.metrics.IncrementResponsesRejected()
		return data.ErrOracleInactive
	}

	if req.Status != data.RequestActive {
		e.metrics.IncrementResponsesRejected()
		return data.ErrInvalidResponse
	}
	if req.Expired(now) {
		e.metrics.IncrementResponsesRejected()
		return data.ErrResponseTimeout
	}

	key := responseKey{requestID: requestID, oracleID: voter.ID}
	if _, dup := e.responses[key]; dup {
		e.metrics.IncrementResponsesRejected()
		return data.ErrResponseAlreadyProcessed
	}

	if confidence > 100 || confidence < e.minConfidence {
		e.metrics.IncrementResponsesRejected()
		return data.ErrInvalidConfidence
	}

	e.responses[key] = &data.OracleResponse{
		RequestID:  requestID,
		OracleID:   voter.ID,
		Valid:      valid,
		Confidence: confidence,
		Signals:    signals,
		Timestamp:  now,
	}
	e.byRequest[requestID] = append(e.byRequest[requestID], voter.ID)

	req.ResponsesReceived++
	if valid {
		req.ValidCount++
	} else {
		req.InvalidCount++
	}

	if err := e.registry.RecordResponse(voter.ID, now); err != nil {
		// Registry records are never removed, so the voter looked up above
		// must still exist.
		e.logger.Error("Updating oracle statistics failed",
			zap.Uint64("oracleID", voter.ID),
			zap.Error(err))
	}
	e.metrics.IncrementResponsesAccepted()

	e.logger.Debug("Oracle response accepted",
		zap.Uint64("requestID", requestID),
		zap.Uint64("oracleID", voter.ID),
		zap.Bool("valid", valid),
		zap.Uint32("confidence", confidence))
	return nil
}

// Finalize closes a request once the expected panel has responded or the
// deadline has passed. The decision is the integer ratio of valid votes to
// responses received, compared against the quorum threshold. Finalization is
// terminal: the outcome is immutable and no further responses are accepted.
func (e *Engine) Finalize(requestID uint64, now uint64) (data.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.requests[requestID]
	if !ok {
		return data.OutcomeNone, data.ErrSubmissionNotFound
	}
	return e.finalizeLocked(req, now)
}

// FinalizeDue finalizes or expires every active request that is ready at the
// given height. Returns the outcomes keyed by request id. Used by the expiry
// sweeper; semantics are identical to per-request Finalize calls.
func (e *Engine) FinalizeDue(now uint64) map[uint64]data.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcomes := make(map[uint64]data.Outcome)
	for id := uint64(0); id < e.nextID; id++ {
		req, ok := e.requests[id]
		if !ok || req.Status != data.RequestActive {
			continue
		}
		outcome, err := e.finalizeLocked(req, now)
		if err == nil || req.Status == data.RequestExpired {
			outcomes[id] = outcome
		}
	}
	return outcomes
}

// finalizeLocked applies the decision rule. Caller must hold the write lock.
func (e *Engine) finalizeLocked(req *data.ValidationRequest, now uint64) (data.Outcome, error) {
	if req.Status != data.RequestActive {
		return data.OutcomeNone, data.ErrInvalidResponse
	}

	panelFull := req.TotalOraclesExpected > 0 && req.ResponsesReceived >= req.TotalOraclesExpected
	if !panelFull && !req.Expired(now) {
		return data.OutcomeNone, data.ErrQuorumNotMet
	}

	if req.ResponsesReceived == 0 {
		req.Status = data.RequestExpired
		e.metrics.IncrementRequestsExpired()

		e.logger.Warn("Validation request expired without responses",
			zap.Uint64("requestID", req.ID))
		return data.OutcomeNone, data.ErrInsufficientData
	}

	ratio := req.ValidCount * 100 / req.ResponsesReceived
	outcome := data.OutcomeRejected
	if ratio >= e.quorumThreshold {
		outcome = data.OutcomeValidated
	}
	req.Status = data.RequestFinalized
	req.Outcome = outcome

	validated := outcome == data.OutcomeValidated
	for _, oracleID := range e.byRequest[req.ID] {
		resp := e.responses[responseKey{requestID: req.ID, oracleID: oracleID}]
		resp.Processed = true
		if err := e.registry.ApplyOutcome(oracleID, resp.Valid == validated); err != nil {
			e.logger.Error("Applying outcome to oracle failed",
				zap.Uint64("oracleID", oracleID),
				zap.Error(err))
		}
	}
	e.metrics.IncrementRequestsFinalized()

	e.logger.Info("Validation request finalized",
		zap.Uint64("requestID", req.ID),
		zap.String("outcome", string(outcome)),
		zap.Uint32("validCount", req.ValidCount),
		zap.Uint32("invalidCount", req.InvalidCount))
	return outcome, nil
}

// Request returns a snapshot of a validation request.
func (e *Engine) Request(requestID uint64) (*data.ValidationRequest, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	req, ok := e.requests[requestID]
	if !ok {
		return nil, data.ErrSubmissionNotFound
	}
	cp := *req
	return &cp, nil
}

// RequestForSubmission returns a snapshot of the request tied to a
// submission, if any.
func (e *Engine) RequestForSubmission(submissionID uint64) (*data.ValidationRequest, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	id, ok := e.bySubmission[submissionID]
	if !ok {
		return nil, data.ErrSubmissionNotFound
	}
	cp := *e.requests[id]
	return &cp, nil
}

// Response returns a snapshot of one oracle's response to a request.
func (e *Engine) Response(requestID, oracleID uint64) (*data.OracleResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	resp, ok := e.responses[responseKey{requestID: requestID, oracleID: oracleID}]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *resp
	return &cp, nil
}

// ActiveRequests returns snapshots of all requests still accepting
// responses, ordered by id.
func (e *Engine) ActiveRequests() []*data.ValidationRequest {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*data.ValidationRequest
	for id := uint64(0); id < e.nextID; id++ {
		if req, ok := e.requests[id]; ok && req.Status == data.RequestActive {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out
}

// ExportRequests returns snapshots of all requests ordered by id, for
// persistence.
func (e *Engine) ExportRequests() []*data.ValidationRequest {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*data.ValidationRequest, 0, len(e.requests))
	for id := uint64(0); id < e.nextID; id++ {
		if req, ok := e.requests[id]; ok {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out
}

// ExportResponses returns snapshots of all responses for a request in
// arrival order, for persistence.
func (e *Engine) ExportResponses(requestID uint64) []*data.OracleResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*data.OracleResponse, 0, len(e.byRequest[requestID]))
	for _, oracleID := range e.byRequest[requestID] {
		cp := *e.responses[responseKey{requestID: requestID, oracleID: oracleID}]
		out = append(out, &cp)
	}
	return out
}

// Stats returns current consensus metrics.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	active := 0
	for _, req := range e.requests {
		if req.Status == data.RequestActive {
			active++
		}
	}
	e.mu.RUnlock()

	return e.metrics.GetStats(active)
}
