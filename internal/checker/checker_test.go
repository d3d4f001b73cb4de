package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/parser"
)

func checkSource(t *testing.T, source string) (*logger.Log, *Result) {
	t.Helper()
	log := logger.NewLog()
	mod := parser.Parse(log, source)
	require.False(t, log.HasErrors(), "source must parse cleanly before checking")
	res := Check(log, mod)
	return log, res
}

// §8: a declared return type incompatible with the body's result type is a
// checker error, with the exact expected/found message the spec's error
// taxonomy (§7) calls for.
func TestReturnTypeMismatch(t *testing.T) {
	log := logger.NewLog()
	mod := parser.Parse(log, `fn greet() -> int { "hi" }`)
	require.False(t, log.HasErrors())

	Check(log, mod)
	require.True(t, log.HasErrors())
	diags := log.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "return type mismatch: expected `int`, found `str`")
}

func TestReturnTypeMatches(t *testing.T) {
	log, _ := checkSource(t, `fn one() -> int { 1 }`)
	assert.False(t, log.HasErrors())
}

// §4.3: "await" requires the operand to be Promise<T> and unwraps to T;
// using "await" outside an async fn is an error but still yields a type.
func TestAwaitUnwrapsPromise(t *testing.T) {
	log, _ := checkSource(t, `
extern fn fetchCount() -> Promise<int>;

async fn run() -> int {
	await fetchCount()
}
`)
	assert.False(t, log.HasErrors())
}

func TestAwaitOutsideAsyncIsError(t *testing.T) {
	log := logger.NewLog()
	mod := parser.Parse(log, `
extern fn fetchCount() -> Promise<int>;

fn run() -> int {
	await fetchCount()
}
`)
	require.False(t, log.HasErrors())
	Check(log, mod)
	require.True(t, log.HasErrors())
	found := false
	for _, d := range log.Diagnostics() {
		if d.Message == "`await` is only valid inside an `async fn`" {
			found = true
		}
	}
	assert.True(t, found)
}

// §8 / §4.3: match-arm enum-variant field binding — a field bound under a
// different local name must resolve to that field's declared type inside
// the arm body.
func TestMatchArmBindsEnumVariantFields(t *testing.T) {
	log, _ := checkSource(t, `
enum Shape {
	Circle(radius: num),
	Square(side: num),
}

fn area(s: Shape) -> num {
	match s {
		Shape::Circle(radius: r) => r * r,
		Shape::Square(side: sideLen) => sideLen * sideLen,
	}
}
`)
	assert.False(t, log.HasErrors())
}

// §4.3 / §9: an @tool-annotated fn with a non-serializable parameter type
// (a function type cannot be mapped to a JSON Schema parameter) produces a
// warning, not an error, and checking still completes.
func TestToolParamNonSerializableWarns(t *testing.T) {
	log, res := checkSource(t, `
@tool fn onDone(cb: (int) -> int) {
}
`)
	assert.False(t, log.HasErrors())
	diags := log.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Equal(t, logger.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "cannot be mapped to a JSON Schema for tool use")

	_, ok := res.Tools["onDone"]
	assert.True(t, ok, "the @tool fn must still be registered in the checker's tool map")
}

func TestToolParamSerializableNoWarning(t *testing.T) {
	log, res := checkSource(t, `
@tool fn greet(name: str) -> str {
	name
}
`)
	assert.False(t, log.HasErrors())
	assert.Empty(t, log.Diagnostics())
	_, ok := res.Tools["greet"]
	assert.True(t, ok)
}
