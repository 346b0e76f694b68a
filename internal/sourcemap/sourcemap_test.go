package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erst-labs/simulate/internal/simtypes"
)

// customSection builds a single WASM custom section (id 0) with a
// length-prefixed name followed by payload bytes, framed with its own
// LEB128 size prefix.
func customSection(name string, payload []byte) []byte {
	body := append(uleb(uint32(len(name))), []byte(name)...)
	body = append(body, payload...)
	section := append([]byte{0}, uleb(uint32(len(body)))...)
	return append(section, body...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func minimalModule(sections ...[]byte) []byte {
	wasm := []byte(wasmMagic)
	wasm = append(wasm, 1, 0, 0, 0) // version
	for _, s := range sections {
		wasm = append(wasm, s...)
	}
	return wasm
}

func TestBuildWithoutDebugSectionsHasNoSymbols(t *testing.T) {
	wasm := minimalModule(customSection("name", []byte("irrelevant")))
	mapper, err := Build(wasm)
	require.NoError(t, err)
	require.False(t, mapper.HasDebugSymbols())
	require.Nil(t, mapper.MapWasmOffsetToSource(0))
}

func TestBuildRejectsNonWasmInput(t *testing.T) {
	_, err := Build([]byte("not wasm at all"))
	require.Error(t, err)
}

func TestExtractCustomSectionsFindsNamedSection(t *testing.T) {
	wasm := minimalModule(customSection(".debug_str", []byte("hello")))
	sections, err := extractCustomSections(wasm)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), sections[".debug_str"])
}

func TestFromCachedMappingsRoundTrip(t *testing.T) {
	mappings := map[uint64]simtypes.SourceLocation{
		0:  {File: "lib.rs", Line: 1},
		10: {File: "lib.rs", Line: 2},
		20: {File: "lib.rs", Line: 3},
	}
	mapper := FromCachedMappings(true, mappings)
	require.True(t, mapper.HasDebugSymbols())

	loc := mapper.MapWasmOffsetToSource(5)
	require.NotNil(t, loc)
	require.Equal(t, uint32(1), loc.Line)

	loc2 := mapper.MapWasmOffsetToSource(15)
	require.NotNil(t, loc2)
	require.Equal(t, uint32(2), loc2.Line)

	// The last interval is open-ended: any offset past its start maps to it.
	loc3 := mapper.MapWasmOffsetToSource(1000)
	require.NotNil(t, loc3)
	require.Equal(t, uint32(3), loc3.Line)
}

func TestFromCachedMappingsBeforeFirstOffset(t *testing.T) {
	mapper := FromCachedMappings(true, map[uint64]simtypes.SourceLocation{10: {File: "a.rs", Line: 1}})
	require.Nil(t, mapper.MapWasmOffsetToSource(5))
}

func TestFromCachedMappingsEmpty(t *testing.T) {
	mapper := FromCachedMappings(true, nil)
	require.Nil(t, mapper.MapWasmOffsetToSource(0))
}

func TestExportFlatMappingsRoundTripsThroughFromCached(t *testing.T) {
	original := map[uint64]simtypes.SourceLocation{
		0: {File: "a.rs", Line: 1},
		5: {File: "a.rs", Line: 2},
	}
	mapper := FromCachedMappings(true, original)
	flat := mapper.ExportFlatMappings()
	require.Equal(t, original, flat)
}

func TestDedupeSameAddressKeepsLastWriter(t *testing.T) {
	first := simtypes.SourceLocation{File: "a.rs", Line: 1}
	second := simtypes.SourceLocation{File: "a.rs", Line: 2}
	entries := []cachedLineEntry{
		{start: 0, location: first},
		{start: 0, location: second},
		{start: 10, location: first},
	}
	deduped := dedupeSameAddress(entries)
	require.Len(t, deduped, 2)
	require.Equal(t, second, deduped[0].location)
}
