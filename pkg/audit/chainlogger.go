// Package audit provides a tamper-evident audit trail. Entries are
// hash-chained: each entry's hash covers the previous entry's hash, so
// any rewrite of history breaks verification from that point on.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LogEntry is a single audit record.
type LogEntry struct {
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// Sink durably stores entries as they are appended. Persist errors are
// reported to the logger's error handler; the in-memory chain always
// advances so the hash sequence stays consistent.
type Sink interface {
	Persist(entry *LogEntry) error
}

// ChainLogger appends hash-chained audit entries.
type ChainLogger struct {
	mu           sync.Mutex
	previousHash string
	sink         Sink
	onError      func(error)
}

// NewChainLogger creates a ChainLogger starting from the zero hash.
// sink and onError may be nil.
func NewChainLogger(sink Sink, onError func(error)) *ChainLogger {
	return &ChainLogger{
		previousHash: strings.Repeat("0", 64),
		sink:         sink,
		onError:      onError,
	}
}

// Resume continues an existing chain from its last hash, as read back
// from the sink.
func (c *ChainLogger) Resume(lastHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lastHash != "" {
		c.previousHash = lastHash
	}
}

// Append adds a new entry to the chain and hands it to the sink.
func (c *ChainLogger) Append(payload string) *LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &LogEntry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		PreviousHash: c.previousHash,
		Payload:      payload,
	}
	entry.Hash = entryHash(entry.PreviousHash, entry.Timestamp, entry.Payload)
	c.previousHash = entry.Hash

	if c.sink != nil {
		if err := c.sink.Persist(entry); err != nil && c.onError != nil {
			c.onError(err)
		}
	}
	return entry
}

func entryHash(previousHash, timestamp, payload string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", previousHash, timestamp, payload)))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that entries form an unbroken, untampered chain.
func VerifyChain(entries []*LogEntry) bool {
	for i, entry := range entries {
		if i > 0 && entry.PreviousHash != entries[i-1].Hash {
			return false
		}
		if entryHash(entry.PreviousHash, entry.Timestamp, entry.Payload) != entry.Hash {
			return false
		}
	}
	return true
}
