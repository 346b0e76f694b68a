// Package xdrcodec decodes the base64/XDR payloads that arrive in a
// simulation Request: transaction envelopes, ledger keys, ledger entries,
// and result metadata. Failures carry a labeled DecodeError: an empty
// payload is reported as Base64Decode, and any failure of the combined
// base64-and-XDR decode of a non-empty payload is reported as XdrParse,
// so a bad base64 blob and a structurally invalid XDR payload carry the
// same label.
package xdrcodec

import (
	"fmt"

	"github.com/stellar/go/xdr"
)

// DecodeError labels a decode failure: Stage is "Base64Decode" for an
// empty payload and "XdrParse" for any other failure to decode the payload.
type DecodeError struct {
	Stage string // "Base64Decode" or "XdrParse"
	What  string // e.g. "LedgerKey"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s(%s): %v", e.Stage, e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func base64Err(what string, err error) error {
	return &DecodeError{Stage: "Base64Decode", What: what, Err: err}
}

func xdrErr(what string, err error) error {
	return &DecodeError{Stage: "XdrParse", What: what, Err: err}
}

// DecodeLedgerKey decodes a base64-encoded XDR LedgerKey. An empty payload
// is a decode error, never an empty-valid key.
func DecodeLedgerKey(b64 string) (xdr.LedgerKey, error) {
	var key xdr.LedgerKey
	if b64 == "" {
		return key, base64Err("LedgerKey", fmt.Errorf("empty payload"))
	}
	if err := xdr.SafeUnmarshalBase64(b64, &key); err != nil {
		return key, xdrErr("LedgerKey", err)
	}
	return key, nil
}

// DecodeLedgerEntry decodes a base64-encoded XDR LedgerEntry.
func DecodeLedgerEntry(b64 string) (xdr.LedgerEntry, error) {
	var entry xdr.LedgerEntry
	if b64 == "" {
		return entry, base64Err("LedgerEntry", fmt.Errorf("empty payload"))
	}
	if err := xdr.SafeUnmarshalBase64(b64, &entry); err != nil {
		return entry, xdrErr("LedgerEntry", err)
	}
	return entry, nil
}

// EncodeLedgerKey re-encodes a LedgerKey to its canonical base64 XDR form.
// Used to build the snapshot's canonical map keys, never the caller's
// original base64 string.
func EncodeLedgerKey(key xdr.LedgerKey) (string, error) {
	return xdr.MarshalBase64(key)
}

// EncodeLedgerEntry re-encodes a LedgerEntry to base64 XDR.
func EncodeLedgerEntry(entry xdr.LedgerEntry) (string, error) {
	return xdr.MarshalBase64(entry)
}

// DecodeEnvelope decodes a base64 transaction envelope. It accepts all
// three wire shapes (v0, v1, fee-bump-wrapping-v1): xdr.TransactionEnvelope
// itself is a tagged union over EnvelopeType and Operations() already
// dispatches across the three shapes for us.
func DecodeEnvelope(b64 string) (xdr.TransactionEnvelope, error) {
	var envelope xdr.TransactionEnvelope
	if b64 == "" {
		return envelope, base64Err("TransactionEnvelope", fmt.Errorf("empty payload"))
	}
	if err := xdr.SafeUnmarshalBase64(b64, &envelope); err != nil {
		return envelope, xdrErr("TransactionEnvelope", err)
	}
	return envelope, nil
}

// DecodeResultMeta decodes a base64 TransactionMeta. Unlike the other
// decoders, a failure here is best-effort: the caller downgrades to "no
// storage preload" with a warning instead of aborting the request.
func DecodeResultMeta(b64 string) (xdr.TransactionMeta, bool) {
	var meta xdr.TransactionMeta
	if b64 == "" {
		return meta, false
	}
	if err := xdr.SafeUnmarshalBase64(b64, &meta); err != nil {
		return meta, false
	}
	return meta, true
}
