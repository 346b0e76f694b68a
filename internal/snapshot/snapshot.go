// Package snapshot holds the decoded ledger-key-to-entry map built from a
// request's restore_preamble and ledger_entries. The metered host does not
// read from it: the pipeline builds it, validating every pair, and reports
// its size in the response logs.
package snapshot

import (
	"encoding/json"
	"sort"

	"github.com/stellar/go/xdr"

	"github.com/erst-labs/simulate/internal/xdrcodec"
)

// Snapshot is a key-bytes → entry map. The key is always the canonical
// re-encoded XDR of the decoded LedgerKey, never the caller's original
// base64 string, so whitespace/case differences in the request can't
// produce phantom duplicates.
type Snapshot struct {
	entries map[string]xdr.LedgerEntry
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{entries: make(map[string]xdr.LedgerEntry)}
}

// FromBase64Map decodes every (key_b64, entry_b64) pair. It fails on the
// first pair that doesn't pass both decoders.
func FromBase64Map(pairs map[string]string) (*Snapshot, error) {
	s := New()
	for keyB64, entryB64 := range pairs {
		if err := s.insertBase64Pair(keyB64, entryB64); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Snapshot) insertBase64Pair(keyB64, entryB64 string) error {
	key, err := xdrcodec.DecodeLedgerKey(keyB64)
	if err != nil {
		return err
	}
	entry, err := xdrcodec.DecodeLedgerEntry(entryB64)
	if err != nil {
		return err
	}
	keyBytes, err := xdrcodec.EncodeLedgerKey(key)
	if err != nil {
		return err
	}
	s.entries[keyBytes] = entry
	return nil
}

// restorePreambleShape is the nested JSON shape resolved in SPEC_FULL.md §9:
// {"ledger_entries": {key_b64: entry_b64}}.
type restorePreambleShape struct {
	LedgerEntries map[string]string `json:"ledger_entries"`
}

// MergeRestorePreamble decodes a restore_preamble payload and merges its
// entries in first, so that the request's ledger_entries, inserted
// afterwards, overwrite on collision — giving the request's own
// ledger_entries precedence, per the resolved Open Question.
func (s *Snapshot) MergeRestorePreamble(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var preamble restorePreambleShape
	if err := json.Unmarshal(raw, &preamble); err != nil {
		return err
	}
	for keyB64, entryB64 := range preamble.LedgerEntries {
		if err := s.insertBase64Pair(keyB64, entryB64); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int { return len(s.entries) }

// IsEmpty reports whether the snapshot holds no entries.
func (s *Snapshot) IsEmpty() bool { return len(s.entries) == 0 }

// Get looks up an entry by its canonical key bytes.
func (s *Snapshot) Get(keyBytes string) (xdr.LedgerEntry, bool) {
	e, ok := s.entries[keyBytes]
	return e, ok
}

// Insert adds or overwrites an entry by its canonical key bytes.
func (s *Snapshot) Insert(keyBytes string, entry xdr.LedgerEntry) {
	s.entries[keyBytes] = entry
}

// Iter walks the snapshot in a stable, sorted-key order. Go map iteration
// is randomized; every downstream ordering guarantee (coverage, events)
// depends on a deterministic walk, so callers must use Iter rather than
// ranging the map directly.
func (s *Snapshot) Iter(fn func(keyBytes string, entry xdr.LedgerEntry)) {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fn(k, s.entries[k])
	}
}
