package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// GenesisHash seeds a fresh chain: the first event's HashPrev is always
// this value, never a real digest.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashChain links successive audit events by hash so a gap or edit in the
// log file is detectable without a separate signature store: each event's
// HashPrev equals SHA-256 of the previous event's canonical JSON.
type HashChain struct {
	mu       sync.Mutex
	lastHash string
}

// NewHashChain starts a fresh chain at the genesis hash.
func NewHashChain() *HashChain {
	return &HashChain{lastHash: GenesisHash}
}

// NewHashChainFrom resumes a chain whose head is already known, e.g. after
// reopening a log file that already has entries. An empty lastHash is
// treated as genesis.
func NewHashChainFrom(lastHash string) *HashChain {
	if lastHash == "" {
		lastHash = GenesisHash
	}
	return &HashChain{lastHash: lastHash}
}

// Chain stamps event.HashPrev with the current chain head and advances the
// head to this event's own hash. Safe for concurrent callers.
func (hc *HashChain) Chain(event *AuditEvent) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	event.HashPrev = hc.lastHash

	hash, err := HashEvent(event)
	if err != nil {
		return err
	}

	hc.lastHash = hash
	return nil
}

// LastHash returns the chain's current head.
func (hc *HashChain) LastHash() string {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.lastHash
}

// HashEvent returns the hex-encoded SHA-256 digest of event's JSON
// encoding. Two events that differ anywhere, including HashPrev itself,
// hash differently.
func HashEvent(event *AuditEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyEvent
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChain walks events in order, checking that each one's HashPrev
// matches the hash of the event before it. prevHash is the HashPrev
// expected of events[0] (GenesisHash for a chain read from its start).
// Walking stops at the first break, if any, and the returned
// ChainVerification reports exactly where and why.
func VerifyChain(events []AuditEvent, prevHash string) *ChainVerification {
	result := &ChainVerification{
		BrokenAt: -1,
		IsIntact: true,
	}

	if len(events) == 0 {
		return result
	}

	for i := range events {
		if events[i].HashPrev != prevHash {
			result.BrokenAt = i
			result.IsIntact = false
			result.ExpectedHash = prevHash
			result.ActualHash = events[i].HashPrev
			return result
		}
		result.Verified++

		hash, err := HashEvent(&events[i])
		if err != nil {
			result.BrokenAt = i
			result.IsIntact = false
			return result
		}
		prevHash = hash
	}

	return result
}
