package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitness_attest/pkg/data"
)

// Ledger moves value between accounts. The trust layer invokes it once per
// oracle registration for the fixed fee and to return stake on deactivation.
type Ledger interface {
	Transfer(amount uint64, from, to string) error
}

// Transfer is one recorded movement of funds.
type Transfer struct {
	ID     string
	Amount uint64
	From   string
	To     string
	At     time.Time
}

// MemoryLedger is an in-process Ledger keeping balances and an append-only
// transfer log.
type MemoryLedger struct {
	balances  map[string]uint64
	transfers []Transfer
	logger    *zap.Logger
	mu        sync.Mutex
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]uint64),
		logger:   logger,
	}
}

// Mint credits an account out of thin air. Used to seed balances in tooling
// and tests.
func (l *MemoryLedger) Mint(account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Transfer moves amount from one account to another. Fails with
// ErrInsufficientFunds when the source balance is too low; no transfer is
// recorded on failure.
func (l *MemoryLedger) Transfer(amount uint64, from, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return data.ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.balances[to] += amount

	transfer := Transfer{
		ID:     uuid.New().String(),
		Amount: amount,
		From:   from,
		To:     to,
		At:     time.Now().UTC(),
	}
	l.transfers = append(l.transfers, transfer)

	l.logger.Debug("Transfer recorded",
		zap.String("id", transfer.ID),
		zap.Uint64("amount", amount),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}

// Balance returns the current balance of an account.
func (l *MemoryLedger) Balance(account string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Transfers returns a copy of the transfer log.
func (l *MemoryLedger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.transfers...)
}
