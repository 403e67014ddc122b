package oracle

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fitness_attest/pkg/data"
	"fitness_attest/pkg/identity"
	"fitness_attest/pkg/ledger"
)

// Registry tracks registered validators: identity, stake, activity flag,
// reputation and response statistics. Oracle ids are dense and assigned
// sequentially; records are never removed, deactivation is a status flip.
type Registry struct {
	auth     identity.Authorizer
	ledger   ledger.Ledger
	treasury string

	minStake        uint64
	registrationFee uint64

	nextID  uint64
	oracles map[uint64]*data.Oracle
	byOwner map[string]uint64
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty oracle registry.
func NewRegistry(auth identity.Authorizer, l ledger.Ledger, logger *zap.Logger, minStake, registrationFee uint64, treasury string) *Registry {
	return &Registry{
		auth:            auth,
		ledger:          l,
		treasury:        treasury,
		minStake:        minStake,
		registrationFee: registrationFee,
		oracles:         make(map[uint64]*data.Oracle),
		byOwner:         make(map[string]uint64),
		logger:          logger,
	}
}

// Register creates an oracle for the caller. Fails if the caller already has
// an active registration or the stake is below the minimum. The registration
// fee and the stake are charged in one transfer before the record is created;
// a failed transfer aborts the registration entirely. The stake is escrowed
// in the treasury until deactivation, the fee is kept.
func (r *Registry) Register(caller string, stake uint64, now uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byOwner[caller]; ok && r.oracles[id].Active {
		return 0, data.ErrOracleAlreadyExists
	}
	if stake < r.minStake {
		return 0, data.ErrInsufficientStake
	}

	if err := r.ledger.Transfer(r.registrationFee+stake, caller, r.treasury); err != nil {
		return 0, fmt.Errorf("charging registration fee and stake: %w", err)
	}

	id := r.nextID
	r.oracles[id] = &data.Oracle{
		ID:           id,
		Owner:        caller,
		Stake:        stake,
		Active:       true,
		RegisteredAt: now,
	}
	r.byOwner[caller] = id
	r.nextID++

	r.logger.Info("Oracle registered",
		zap.Uint64("oracleID", id),
		zap.String("owner", caller),
		zap.Uint64("stake", stake))
	return id, nil
}

// Deactivate flips an oracle's active flag. Admin-only. The escrowed stake is
// returned from the treasury; the fee and the record itself are kept.
func (r *Registry) Deactivate(caller string, oracleID uint64) error {
	if !r.auth.IsAdmin(caller) {
		return data.ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	oracle, ok := r.oracles[oracleID]
	if !ok {
		return data.ErrOracleNotFound
	}
	if !oracle.Active {
		return data.ErrOracleInactive
	}

	if err := r.ledger.Transfer(oracle.Stake, r.treasury, oracle.Owner); err != nil {
		return fmt.Errorf("returning stake: %w", err)
	}
	oracle.Active = false

	r.logger.Info("Oracle deactivated",
		zap.Uint64("oracleID", oracleID),
		zap.String("owner", oracle.Owner))
	return nil
}

// Lookup returns a snapshot of the caller's most recent registration,
// active or not.
func (r *Registry) Lookup(owner string) (*data.Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOwner[owner]
	if !ok {
		return nil, data.ErrOracleNotFound
	}
	cp := *r.oracles[id]
	return &cp, nil
}

// Get returns a snapshot of an oracle by id.
func (r *Registry) Get(oracleID uint64) (*data.Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	oracle, ok := r.oracles[oracleID]
	if !ok {
		return nil, data.ErrOracleNotFound
	}
	cp := *oracle
	return &cp, nil
}

// List returns snapshots of all oracles ordered by id.
func (r *Registry) List() []*data.Oracle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*data.Oracle, 0, len(r.oracles))
	for id := uint64(0); id < r.nextID; id++ {
		if oracle, ok := r.oracles[id]; ok {
			cp := *oracle
			out = append(out, &cp)
		}
	}
	return out
}

// Count returns the number of registered oracles, active or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.oracles)
}

// RecordResponse updates an oracle's response statistics after the
// aggregator accepts a response.
func (r *Registry) RecordResponse(oracleID uint64, now uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oracle, ok := r.oracles[oracleID]
	if !ok {
		return data.ErrOracleNotFound
	}
	oracle.LastResponseAt = now
	oracle.TotalResponses++
	return nil
}

// ApplyOutcome feeds a finalized decision back into reputation: a vote that
// matched the outcome earns a point, a mismatch loses one.
func (r *Registry) ApplyOutcome(oracleID uint64, correct bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oracle, ok := r.oracles[oracleID]
	if !ok {
		return data.ErrOracleNotFound
	}
	if correct {
		oracle.CorrectResponses++
		oracle.Reputation++
	} else {
		oracle.Reputation--
	}
	return nil
}
