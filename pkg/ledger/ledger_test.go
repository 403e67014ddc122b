package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitness_attest/pkg/data"
)

func TestMemoryLedger_Transfer(t *testing.T) {
	l := NewMemoryLedger(zap.NewNop())
	l.Mint("alice", 100)

	require.NoError(t, l.Transfer(60, "alice", "bob"))
	assert.Equal(t, uint64(40), l.Balance("alice"))
	assert.Equal(t, uint64(60), l.Balance("bob"))

	transfers := l.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, uint64(60), transfers[0].Amount)
	assert.Equal(t, "alice", transfers[0].From)
	assert.Equal(t, "bob", transfers[0].To)
	assert.NotEmpty(t, transfers[0].ID)
}

func TestMemoryLedger_InsufficientFunds(t *testing.T) {
	l := NewMemoryLedger(zap.NewNop())
	l.Mint("alice", 50)

	err := l.Transfer(60, "alice", "bob")
	assert.ErrorIs(t, err, data.ErrInsufficientFunds)

	// Nothing moved, nothing logged.
	assert.Equal(t, uint64(50), l.Balance("alice"))
	assert.Equal(t, uint64(0), l.Balance("bob"))
	assert.Empty(t, l.Transfers())
}

func TestMemoryLedger_UnknownAccount(t *testing.T) {
	l := NewMemoryLedger(zap.NewNop())

	assert.Equal(t, uint64(0), l.Balance("nobody"))
	assert.ErrorIs(t, l.Transfer(1, "nobody", "bob"), data.ErrInsufficientFunds)
}
