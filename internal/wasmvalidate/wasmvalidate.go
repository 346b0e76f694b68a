// Package wasmvalidate rejects WASM modules that contain floating-point
// operators, mirroring the host's strict-compatibility determinism model:
// no floats are permitted to reach execution. Validation happens before
// the module is ever handed to the metered host.
//
// There is no fetchable Go equivalent to an operator-level WASM parser in
// the retrieval pack (the closest analogue, wasmparser, is a Rust crate);
// this package is a narrow hand-rolled binary-format walker scoped to
// exactly what enforcement needs: section framing, LEB128 decoding, and an
// opcode table wide enough to walk past every non-float instruction
// without misreading an immediate operand as an opcode byte.
package wasmvalidate

import (
	"errors"
	"fmt"
)

const (
	wasmMagic   = "\x00asm"
	sectionCode = 10
)

// floatRejectMessage is returned verbatim as the rejection error so callers
// can match the exact phrase the pipeline's testable properties require.
const floatRejectMessage = "floating-point instructions are not allowed under strict Soroban compatibility"

// EnforceSorobanCompatibility scans the module's code section for any
// floating-point operator (scalar f32/f64, SIMD f32x4/f64x2, and
// float-to-int / int-to-float conversions) and returns an error at the
// first one found. The error message is the same for every operator; it
// does not name the one that was found.
func EnforceSorobanCompatibility(wasm []byte) error {
	r := &reader{buf: wasm}
	if err := r.expectMagic(); err != nil {
		return err
	}
	// version: 4 bytes, unchecked beyond presence
	if _, err := r.take(4); err != nil {
		return fmt.Errorf("truncated wasm header: %w", err)
	}

	for !r.atEnd() {
		id, err := r.byte()
		if err != nil {
			return nil // trailing garbage after the last section: nothing left to validate
		}
		size, err := r.uvarint()
		if err != nil {
			return fmt.Errorf("malformed section header: %w", err)
		}
		body, err := r.take(int(size))
		if err != nil {
			return fmt.Errorf("truncated section body: %w", err)
		}
		if id == sectionCode {
			if err := scanCodeSection(body); err != nil {
				return err
			}
		}
	}
	return nil
}

func scanCodeSection(body []byte) error {
	r := &reader{buf: body}
	count, err := r.uvarint()
	if err != nil {
		return fmt.Errorf("malformed code section: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.uvarint()
		if err != nil {
			return fmt.Errorf("malformed function body: %w", err)
		}
		fnBody, err := r.take(int(bodySize))
		if err != nil {
			return fmt.Errorf("truncated function body: %w", err)
		}
		if err := scanFunctionBody(fnBody); err != nil {
			return err
		}
	}
	return nil
}

func scanFunctionBody(body []byte) error {
	r := &reader{buf: body}
	// local declarations: vec(count: u32, type: byte)
	localGroups, err := r.uvarint()
	if err != nil {
		return fmt.Errorf("malformed locals: %w", err)
	}
	for i := uint32(0); i < localGroups; i++ {
		if _, err := r.uvarint(); err != nil {
			return fmt.Errorf("malformed locals: %w", err)
		}
		if _, err := r.byte(); err != nil {
			return fmt.Errorf("malformed locals: %w", err)
		}
	}
	return scanOperators(r)
}

// scanOperators walks the operator stream until the reader is exhausted,
// skipping every instruction's immediate operands so opcode bytes inside
// them are never misread as instructions.
func scanOperators(r *reader) error {
	for !r.atEnd() {
		op, err := r.byte()
		if err != nil {
			return nil
		}
		if isFloatOpcode(op) {
			return errors.New(floatRejectMessage)
		}
		if err := skipImmediate(r, op); err != nil {
			return err
		}
	}
	return nil
}

// skipImmediate advances r past the operand(s) of the instruction whose
// opcode byte was just consumed.
func skipImmediate(r *reader, op byte) error {
	switch {
	case op == 0x02 || op == 0x03 || op == 0x04: // block, loop, if: blocktype
		return skipBlockType(r)
	case op == 0x0C || op == 0x0D: // br, br_if: labelidx
		_, err := r.uvarint()
		return err
	case op == 0x0E: // br_table: vec(labelidx) + labelidx
		n, err := r.uvarint()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := r.uvarint(); err != nil {
				return err
			}
		}
		_, err = r.uvarint()
		return err
	case op == 0x10: // call: funcidx
		_, err := r.uvarint()
		return err
	case op == 0x11: // call_indirect: typeidx, tableidx
		if _, err := r.uvarint(); err != nil {
			return err
		}
		_, err := r.uvarint()
		return err
	case op == 0x1C: // select t*: vec(valtype)
		n, err := r.uvarint()
		if err != nil {
			return err
		}
		_, err = r.take(int(n))
		return err
	case op >= 0x20 && op <= 0x26: // local/global/table get/set/tee: index
		_, err := r.uvarint()
		return err
	case op >= 0x28 && op <= 0x3E: // memory load/store: memarg (align, offset)
		if _, err := r.uvarint(); err != nil {
			return err
		}
		_, err := r.uvarint()
		return err
	case op == 0x3F || op == 0x40: // memory.size, memory.grow: reserved
		_, err := r.uvarint()
		return err
	case op == 0x41: // i32.const
		_, err := r.varint()
		return err
	case op == 0x42: // i64.const
		_, err := r.varint64()
		return err
	case op == 0x43: // f32.const: 4 raw bytes
		_, err := r.take(4)
		return err
	case op == 0x44: // f64.const: 8 raw bytes
		_, err := r.take(8)
		return err
	case op == 0xFC: // misc prefixed ops: sat-trunc, memory/table bulk ops
		return skipMiscPrefixed(r)
	case op == 0xFD: // SIMD prefixed ops
		return skipSIMDPrefixed(r)
	default:
		// no immediate: unreachable, nop, else, end, return, drop, select,
		// every comparison/arithmetic/test op in the i32/i64/f32/f64 set.
		return nil
	}
}

func skipBlockType(r *reader) error {
	b, err := r.peekByte()
	if err != nil {
		return err
	}
	if b == 0x40 {
		_, err := r.byte()
		return err
	}
	// either a value type (single byte) or a signed LEB128 type index;
	// both are consumed correctly by reading one signed varint.
	_, err = r.varint()
	return err
}

func skipMiscPrefixed(r *reader) error {
	sub, err := r.uvarint()
	if err != nil {
		return err
	}
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7: // *.trunc_sat_*: float-to-int conversions
		return errors.New(floatRejectMessage)
	case 8: // memory.init: dataidx, memidx
		if _, err := r.uvarint(); err != nil {
			return err
		}
		_, err := r.uvarint()
		return err
	case 9: // data.drop: dataidx
		_, err := r.uvarint()
		return err
	case 10, 14: // memory.copy, table.copy: two indices
		if _, err := r.uvarint(); err != nil {
			return err
		}
		_, err := r.uvarint()
		return err
	case 11: // memory.fill: reserved
		_, err := r.uvarint()
		return err
	case 12, 13: // table.init: elemidx, tableidx; elem.drop: elemidx
		if _, err := r.uvarint(); err != nil {
			return err
		}
		if sub == 13 {
			return nil
		}
		_, err := r.uvarint()
		return err
	case 15, 16, 17: // table.grow/size/fill: tableidx
		_, err := r.uvarint()
		return err
	default:
		return fmt.Errorf("unsupported misc opcode 0xFC %d", sub)
	}
}

// simdFloatSubopcodes lists the fixed-width SIMD subopcodes that operate on
// or produce f32x4/f64x2 lanes: splat, lane access, comparisons, rounding,
// arithmetic, and float/int lane conversions. Relaxed-SIMD operators are
// not listed.
var simdFloatSubopcodes = map[uint32]bool{
	19: true, 20: true, // f32x4.splat, f64x2.splat
	31: true, 32: true, 33: true, 34: true, // f32x4/f64x2 extract_lane, replace_lane
	65: true, 66: true, 67: true, 68: true, 69: true, 70: true, // f32x4 eq..ge
	71: true, 72: true, 73: true, 74: true, 75: true, 76: true, // f64x2 eq..ge
	94: true, 95: true, // f32x4.demote_f64x2_zero, f64x2.promote_low_f32x4
	103: true, 104: true, 105: true, 106: true, // f32x4 ceil, floor, trunc, nearest
	116: true, 117: true, 122: true, 148: true, // f64x2 ceil, floor, trunc, nearest
	224: true, 225: true, 227: true, 228: true, 229: true, 230: true, 231: true, 232: true, 233: true, 234: true, 235: true, // f32x4 arithmetic
	236: true, 237: true, 239: true, 240: true, 241: true, 242: true, 243: true, 244: true, 245: true, 246: true, 247: true, // f64x2 arithmetic
	248: true, 249: true, 250: true, 251: true, 252: true, 253: true, 254: true, 255: true, // trunc_sat / convert between float and i32x4 lanes
}

func skipSIMDPrefixed(r *reader) error {
	sub, err := r.uvarint()
	if err != nil {
		return err
	}
	if simdFloatSubopcodes[sub] {
		return errors.New(floatRejectMessage)
	}
	switch {
	case sub <= 11: // v128.load* / v128.store*: memarg
		if _, err := r.uvarint(); err != nil {
			return err
		}
		_, err := r.uvarint()
		return err
	case sub == 12: // v128.const: 16 raw bytes
		_, err := r.take(16)
		return err
	case sub == 13: // i8x16.shuffle: 16 lane bytes
		_, err := r.take(16)
		return err
	case sub >= 21 && sub <= 34: // extract_lane / replace_lane: lane index byte
		_, err := r.byte()
		return err
	default:
		// The overwhelming majority of remaining SIMD opcodes (integer
		// splat/arith/compare, bitwise, shifts) take no immediate beyond
		// the subopcode itself.
		return nil
	}
}

func isFloatOpcode(op byte) bool {
	switch {
	case op == 0x43 || op == 0x44: // f32.const, f64.const
		return true
	case op == 0x2A || op == 0x2B || op == 0x38 || op == 0x39: // f32/f64 load, store
		return true
	case op >= 0x5B && op <= 0x66: // f32/f64 comparisons
		return true
	case op >= 0x8B && op <= 0xA6: // f32/f64 unary/binary arithmetic
		return true
	case op >= 0xA8 && op <= 0xB1: // i32/i64 trunc from f32/f64
		return true
	case op >= 0xB2 && op <= 0xBB: // f32/f64 convert from int, demote/promote
		return true
	case op >= 0xBC && op <= 0xBF: // i32/i64.reinterpret_f32/f64, f32/f64.reinterpret_i32/i64
		return true
	default:
		return false
	}
}

// reader is a cursor over a byte slice with LEB128 decoding helpers.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) atEnd() bool { return r.pos >= len(r.buf) }

func (r *reader) expectMagic() error {
	if len(r.buf) < 4 || string(r.buf[:4]) != wasmMagic {
		return fmt.Errorf("not a wasm module: missing magic bytes")
	}
	r.pos = 4
	return nil
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of module")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) peekByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of module")
	}
	return r.buf[r.pos], nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of module")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uvarint() (uint32, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return uint32(result), nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("leb128 overflow")
		}
	}
}

func (r *reader) varint() (int32, error) {
	v, err := r.varint64()
	return int32(v), err
}

func (r *reader) varint64() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, fmt.Errorf("leb128 overflow")
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

// MaxWasmSize is the hard ceiling enforced on request-supplied WASM paths.
const MaxWasmSize = 64 * 1024

// LoadError is a fatal, user-facing WASM-loading failure.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string { return e.Reason }

// ValidateMagicAndSize applies the boundary checks from the data model
// before a module is handed to the validator or the host: size at most
// MaxWasmSize, and the four-byte \0asm magic.
func ValidateMagicAndSize(wasm []byte) error {
	if len(wasm) > MaxWasmSize {
		return &LoadError{Reason: fmt.Sprintf("wasm module exceeds maximum size of %d bytes", MaxWasmSize)}
	}
	if len(wasm) < 4 || string(wasm[:4]) != wasmMagic {
		return &LoadError{Reason: "wasm module missing magic bytes"}
	}
	return nil
}
