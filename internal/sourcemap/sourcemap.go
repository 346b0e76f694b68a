// Package sourcemap parses WASM DWARF debug sections and maps raw VM
// instruction offsets back to source coordinates. There is no Go library
// in the retrieval pack that pairs "read a WASM custom section" with
// "parse DWARF" the way the grounding source's object+gimli crate pair
// does; this package hand-rolls the former (its own section-header walker,
// separate from the one in internal/wasmvalidate) and hands the raw
// section bytes straight to
// the standard library's debug/dwarf, which accepts them directly.
package sourcemap

import (
	"debug/dwarf"
	"fmt"
	"sort"

	"github.com/erst-labs/simulate/internal/gitlink"
	"github.com/erst-labs/simulate/internal/simtypes"
)

const wasmMagic = "\x00asm"
const customSectionID = 0

// cachedLineEntry is a half-open interval [start, end) mapping a WASM
// offset range to a source location. end is nil for the last interval in
// a sequence (no known upper bound).
type cachedLineEntry struct {
	start    uint64
	end      *uint64
	location simtypes.SourceLocation
}

// Mapper resolves WASM instruction offsets to source locations, built once
// per invocation from a module's debug sections.
type Mapper struct {
	hasSymbols bool
	lineCache  []cachedLineEntry
	gitRepo    *gitlink.Repository
}

// Build constructs a Mapper from raw WASM bytes. Unless both .debug_info
// and .debug_line custom sections are present, the mapper is marked
// symbol-less and every lookup returns "unmapped".
func Build(wasm []byte) (*Mapper, error) {
	sections, err := extractCustomSections(wasm)
	if err != nil {
		return nil, err
	}

	info, hasInfo := sections[".debug_info"]
	line, hasLine := sections[".debug_line"]
	hasSymbols := hasInfo && hasLine

	m := &Mapper{hasSymbols: hasSymbols, gitRepo: gitlink.Detect()}
	if !hasSymbols {
		return m, nil
	}

	d, err := dwarf.New(sections[".debug_abbrev"], sections[".debug_aranges"], nil, info, line, nil, sections[".debug_ranges"], sections[".debug_str"])
	if err != nil {
		return nil, fmt.Errorf("failed to load DWARF: %w", err)
	}

	cache, err := extractLineEntries(d)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .debug_line: %w", err)
	}
	m.lineCache = cache
	return m, nil
}

// HasDebugSymbols reports whether the module carried parseable debug
// sections.
func (m *Mapper) HasDebugSymbols() bool { return m.hasSymbols }

// HasDebugSections reports whether wasm carries both .debug_info and
// .debug_line custom sections, without parsing DWARF. It lets a cache
// layer cheaply validate a stored has_symbols flag against the module it
// was keyed on, without paying for Build's full DWARF parse.
func HasDebugSections(wasm []byte) (bool, error) {
	sections, err := extractCustomSections(wasm)
	if err != nil {
		return false, err
	}
	_, hasInfo := sections[".debug_info"]
	_, hasLine := sections[".debug_line"]
	return hasInfo && hasLine, nil
}

// ExportFlatMappings flattens the interval cache to a start-offset keyed
// map, the shape internal/sourcemapcache persists to disk. The interval
// end boundaries are not themselves serialized; FromCachedMappings
// reconstructs them from the sorted key order on load.
func (m *Mapper) ExportFlatMappings() map[uint64]simtypes.SourceLocation {
	flat := make(map[uint64]simtypes.SourceLocation, len(m.lineCache))
	for _, e := range m.lineCache {
		flat[e.start] = e.location
	}
	return flat
}

// FromCachedMappings rebuilds a Mapper from a previously-cached flat
// mapping, without re-parsing DWARF. Interval ends are reconstructed as
// the next entry's start; the last entry is left open-ended.
func FromCachedMappings(hasSymbols bool, mappings map[uint64]simtypes.SourceLocation) *Mapper {
	m := &Mapper{hasSymbols: hasSymbols, gitRepo: gitlink.Detect()}
	if !hasSymbols || len(mappings) == 0 {
		return m
	}

	starts := make([]uint64, 0, len(mappings))
	for start := range mappings {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	cache := make([]cachedLineEntry, 0, len(starts))
	for i, start := range starts {
		entry := cachedLineEntry{start: start, location: mappings[start]}
		if i+1 < len(starts) {
			end := starts[i+1]
			entry.end = &end
		}
		cache = append(cache, entry)
	}
	m.lineCache = cache
	return m
}

// MapWasmOffsetToSource performs a binary search for the largest interval
// start at or below offset, and returns its location unless the interval
// has a closed end that offset has already passed.
func (m *Mapper) MapWasmOffsetToSource(offset uint64) *simtypes.SourceLocation {
	if !m.hasSymbols || len(m.lineCache) == 0 {
		return nil
	}

	idx := sort.Search(len(m.lineCache), func(i int) bool {
		return m.lineCache[i].start > offset
	}) - 1
	if idx < 0 {
		return nil
	}

	entry := m.lineCache[idx]
	if entry.end != nil && offset >= *entry.end {
		return nil
	}

	loc := entry.location
	if m.gitRepo != nil {
		if link := m.gitRepo.GenerateFileLink(loc.File, loc.Line); link != "" {
			loc.GithubLink = &link
		}
	}
	return &loc
}

func extractLineEntries(d *dwarf.Data) ([]cachedLineEntry, error) {
	var cache []cachedLineEntry

	reader := d.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		lr, err := d.LineReader(entry)
		if err != nil || lr == nil {
			reader.SkipChildren()
			continue
		}

		var pendingStart uint64
		var pendingLoc *simtypes.SourceLocation
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break // end of this unit's line program
			}
			if le.EndSequence {
				if pendingLoc != nil {
					end := le.Address
					cache = append(cache, cachedLineEntry{start: pendingStart, end: &end, location: *pendingLoc})
					pendingLoc = nil
				}
				continue
			}

			loc := simtypes.SourceLocation{Line: uint32(le.Line)}
			if le.File != nil {
				loc.File = le.File.Name
			}
			if le.Column > 0 {
				col := uint32(le.Column)
				loc.Column = &col
			}

			if pendingLoc != nil {
				end := le.Address
				cache = append(cache, cachedLineEntry{start: pendingStart, end: &end, location: *pendingLoc})
			}
			pendingStart = le.Address
			pendingLoc = &loc
		}
		if pendingLoc != nil {
			cache = append(cache, cachedLineEntry{start: pendingStart, end: nil, location: *pendingLoc})
		}
		reader.SkipChildren()
	}

	sort.SliceStable(cache, func(i, j int) bool { return cache[i].start < cache[j].start })
	return dedupeSameAddress(cache), nil
}

// dedupeSameAddress collapses consecutive entries sharing the same start
// offset, keeping the later one (last-writer-wins).
func dedupeSameAddress(entries []cachedLineEntry) []cachedLineEntry {
	deduped := make([]cachedLineEntry, 0, len(entries))
	for _, e := range entries {
		if n := len(deduped); n > 0 && deduped[n-1].start == e.start {
			deduped[n-1] = e
			continue
		}
		deduped = append(deduped, e)
	}
	return deduped
}

// extractCustomSections walks the module's section headers and returns the
// payload of every named custom section (id 0), keyed by name.
func extractCustomSections(wasm []byte) (map[string][]byte, error) {
	if len(wasm) < 8 || string(wasm[:4]) != wasmMagic {
		return nil, fmt.Errorf("not a wasm module: missing magic bytes")
	}
	sections := make(map[string][]byte)
	pos := 8 // magic + version
	for pos < len(wasm) {
		id := wasm[pos]
		pos++
		size, n, err := readUvarint(wasm[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if pos+int(size) > len(wasm) {
			return nil, fmt.Errorf("truncated section body")
		}
		body := wasm[pos : pos+int(size)]
		pos += int(size)

		if id != customSectionID {
			continue
		}
		nameLen, nn, err := readUvarint(body)
		if err != nil {
			return nil, err
		}
		if nn+int(nameLen) > len(body) {
			return nil, fmt.Errorf("truncated custom section name")
		}
		name := string(body[nn : nn+int(nameLen)])
		sections[name] = body[nn+int(nameLen):]
	}
	return sections, nil
}

func readUvarint(buf []byte) (uint32, int, error) {
	var result uint64
	var shift uint
	for i, b := range buf {
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return uint32(result), i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128 overflow")
		}
	}
	return 0, 0, fmt.Errorf("unexpected end of section header")
}
