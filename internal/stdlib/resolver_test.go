package stdlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// §4.4: std:log resolves to the embedded module, which is Layer B (extern
// + a fixed "@agentscript/stdlib/<module>" runtime import root).
func TestResolveKnownModule(t *testing.T) {
	r := New()
	mod, layer, log, err := r.Resolve("std:log")
	require.NoError(t, err)
	require.NotNil(t, mod)
	assert.Equal(t, LayerB, layer)
	assert.False(t, log.HasErrors())
	assert.NotEmpty(t, mod.Items)
}

// §4.4: std:web/fetch is the one Layer A module (pure extern, no runtime
// import root — it types a Web global).
func TestWebFetchIsLayerA(t *testing.T) {
	r := New()
	_, layer, _, err := r.Resolve("std:web/fetch")
	require.NoError(t, err)
	assert.Equal(t, LayerA, layer)
}

func TestResolveUnknownModule(t *testing.T) {
	r := New()
	_, _, _, err := r.Resolve("std:not/real")
	require.Error(t, err)
}

// The LRU cache must return the identical parsed *ast.Module on a second
// Resolve of the same path, not a fresh parse.
func TestResolveCachesParsedModule(t *testing.T) {
	r := New()
	mod1, _, _, err := r.Resolve("std:env")
	require.NoError(t, err)
	mod2, _, _, err := r.Resolve("std:env")
	require.NoError(t, err)
	assert.Same(t, mod1, mod2)
}

// §4.4: a missing symbol in a resolved stdlib module is reported by name,
// not silently dropped; declared symbols are found.
func TestLookupNamesReportsMissing(t *testing.T) {
	r := New()
	mod, _, _, err := r.Resolve("std:log")
	require.NoError(t, err)

	found, missing := LookupNames(mod, []string{"info", "doesNotExist"})
	assert.Contains(t, found, "info")
	assert.Equal(t, []string{"doesNotExist"}, missing)
}
