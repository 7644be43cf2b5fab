package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainLogger(t *testing.T) {
	logger := NewChainLogger(nil, nil)

	e1 := logger.Append("action: post_entry, org: org-1")
	e2 := logger.Append("action: approve_invoice, org: org-1")
	e3 := logger.Append("action: record_payment, org: org-1")

	chain := []*LogEntry{e1, e2, e3}
	assert.True(t, VerifyChain(chain))
	assert.Equal(t, e1.Hash, e2.PreviousHash)
	assert.Equal(t, e2.Hash, e3.PreviousHash)

	// Tampered payload breaks verification.
	originalPayload := e2.Payload
	e2.Payload = "action: delete_entry, org: org-1"
	assert.False(t, VerifyChain(chain))
	e2.Payload = originalPayload

	// Tampered hash breaks verification.
	originalHash := e2.Hash
	e2.Hash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	assert.False(t, VerifyChain(chain))
	e2.Hash = originalHash

	// Broken link breaks verification.
	e3.PreviousHash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	assert.False(t, VerifyChain(chain))
}

func TestSQLiteSink(t *testing.T) {
	sink, err := OpenSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	var sinkErr error
	logger := NewChainLogger(sink, func(err error) { sinkErr = err })
	logger.Append("first")
	logger.Append("second")
	require.NoError(t, sinkErr)

	entries, err := sink.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, VerifyChain(entries))

	// The chain resumes from the persisted tip.
	last, err := sink.LastHash()
	require.NoError(t, err)
	assert.Equal(t, entries[1].Hash, last)

	resumed := NewChainLogger(sink, func(err error) { sinkErr = err })
	resumed.Resume(last)
	resumed.Append("third")
	require.NoError(t, sinkErr)

	entries, err = sink.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, VerifyChain(entries))
}
