package data

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository used in tests and for running
// without a database.
type MemoryRepository struct {
	oracles     map[uint64]*Oracle
	requests    map[uint64]*ValidationRequest
	responses   map[uint64][]*OracleResponse
	submissions map[uint64]*Submission
	fraud       map[string]*FraudRecord
	mu          sync.RWMutex
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		oracles:     make(map[uint64]*Oracle),
		requests:    make(map[uint64]*ValidationRequest),
		responses:   make(map[uint64][]*OracleResponse),
		submissions: make(map[uint64]*Submission),
		fraud:       make(map[string]*FraudRecord),
	}
}

func (m *MemoryRepository) SaveOracle(ctx context.Context, oracle *Oracle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *oracle
	m.oracles[oracle.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetOracle(ctx context.Context, id uint64) (*Oracle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.oracles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryRepository) ListOracles(ctx context.Context) ([]*Oracle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Oracle, 0, len(m.oracles))
	for _, o := range m.oracles {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepository) SaveRequest(ctx context.Context, request *ValidationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *request
	m.requests[request.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetRequest(ctx context.Context, id uint64) (*ValidationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *MemoryRepository) ListActiveRequests(ctx context.Context) ([]*ValidationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ValidationRequest
	for _, req := range m.requests {
		if req.Status == RequestActive {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRepository) SaveResponse(ctx context.Context, response *OracleResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *response
	for i, existing := range m.responses[response.RequestID] {
		if existing.OracleID == response.OracleID {
			m.responses[response.RequestID][i] = &cp
			return nil
		}
	}
	m.responses[response.RequestID] = append(m.responses[response.RequestID], &cp)
	return nil
}

func (m *MemoryRepository) GetResponsesByRequest(ctx context.Context, requestID uint64) ([]*OracleResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*OracleResponse, 0, len(m.responses[requestID]))
	for _, resp := range m.responses[requestID] {
		cp := *resp
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepository) SaveSubmission(ctx context.Context, submission *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[submission.ID] = submission.Clone()
	return nil
}

func (m *MemoryRepository) GetSubmission(ctx context.Context, id uint64) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryRepository) ListSubmissionsByUser(ctx context.Context, user string) ([]*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Submission
	for _, s := range m.submissions {
		if s.User == user {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (m *MemoryRepository) SaveFraudRecord(ctx context.Context, record *FraudRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fraud[record.User] = record.Clone()
	return nil
}

func (m *MemoryRepository) GetFraudRecord(ctx context.Context, user string) (*FraudRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.fraud[user]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}
