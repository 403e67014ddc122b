package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationRequest_Expired(t *testing.T) {
	req := &ValidationRequest{Deadline: 100}

	assert.False(t, req.Expired(99))
	assert.False(t, req.Expired(100))
	assert.True(t, req.Expired(101))
}

func TestSubmission_Clone(t *testing.T) {
	sub := &Submission{
		ID:       1,
		User:     "ST1USER",
		Hash:     []byte{1, 2, 3},
		DeviceID: []byte{4, 5, 6},
	}

	cp := sub.Clone()
	cp.Hash[0] = 99
	cp.DeviceID[0] = 99

	assert.Equal(t, byte(1), sub.Hash[0])
	assert.Equal(t, byte(4), sub.DeviceID[0])
}

func TestFraudRecord_Clone(t *testing.T) {
	record := &FraudRecord{
		User:    "ST1USER",
		History: []DetectionEntry{{Timestamp: 100, Score: 40}},
	}

	cp := record.Clone()
	cp.History[0].Score = 0

	assert.Equal(t, uint32(40), record.History[0].Score)
}
