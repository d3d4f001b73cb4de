// Package stdlib implements the Stdlib Resolver (§4.4): it maps
// "std:<path>" imports to embedded AgentScript source and splices the
// named declarations into the current compilation. Embedded modules are
// parsed once and cached in an LRU (github.com/hashicorp/golang-lru/v2,
// grounded on Keyhole-Koro-InsightifyCore's resolver cache) so repeated
// imports across files in one process don't re-lex/re-parse the same
// embedded source.
package stdlib

import (
	"embed"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/parser"
)

//go:embed std/*.ag
var embedded embed.FS

// Layer distinguishes §4.4's two stdlib tiers.
type Layer int

const (
	LayerA Layer = iota // pure extern, no runtime import (Web globals)
	LayerB              // extern + rewrite to "@agentscript/stdlib/<module>"
)

type cacheEntry struct {
	mod   *ast.Module
	layer Layer
}

type Resolver struct {
	cache *lru.Cache[string, cacheEntry]
}

const defaultCacheSize = 64

func New() *Resolver {
	c, _ := lru.New[string, cacheEntry](defaultCacheSize)
	return &Resolver{cache: c}
}

// pathToFile maps a "std:<path>" import to its embedded file, per the
// fixed module table this resolver ships (§4.4 names std:web/...,
// std:http/..., std:log, std:fs, std:env, std:encoding explicitly).
var pathToFile = map[string]string{
	"std:web/fetch":   "web_fetch.ag",
	"std:http/client":  "http_client.ag",
	"std:log":          "log.ag",
	"std:fs":           "fs.ag",
	"std:env":          "env.ag",
	"std:encoding":     "encoding.ag",
}

func layerFor(stdPath string) Layer {
	if strings.HasPrefix(stdPath, "std:web/") {
		return LayerA
	}
	return LayerB
}

// Resolve parses (or returns the cached parse of) the embedded module
// backing stdPath ("std:x/y"). The returned Module's declarations are
// what the driver splices the requested names from.
func (r *Resolver) Resolve(stdPath string) (*ast.Module, Layer, *logger.Log, error) {
	if entry, ok := r.cache.Get(stdPath); ok {
		return entry.mod, entry.layer, logger.NewLog(), nil
	}

	file, ok := pathToFile[stdPath]
	if !ok {
		return nil, 0, nil, fmt.Errorf("unknown stdlib module %q", stdPath)
	}
	src, err := embedded.ReadFile("std/" + file)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("unknown stdlib module %q", stdPath)
	}

	log := logger.NewLog()
	mod := parser.Parse(log, string(src))
	layer := layerFor(stdPath)

	r.cache.Add(stdPath, cacheEntry{mod: mod, layer: layer})
	return mod, layer, log, nil
}

// LookupNames finds the requested top-level names in mod and returns them
// by name, together with the requested names the module does not declare,
// which the driver reports as diagnostics (§4.4's "missing symbol yields a
// diagnostic").
func LookupNames(mod *ast.Module, names []string) (map[string]ast.Item, []string) {
	byName := map[string]ast.Item{}
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.ExternFnDecl:
			byName[d.Name] = item
		case *ast.ExternStructDecl:
			byName[d.Name] = item
		case *ast.ExternTypeDecl:
			byName[d.Name] = item
		case *ast.FnDecl:
			byName[d.Name] = item
		case *ast.VarDecl:
			byName[d.Name] = item
		}
	}
	found := map[string]ast.Item{}
	var missing []string
	for _, n := range names {
		if item, ok := byName[n]; ok {
			found[n] = item
		} else {
			missing = append(missing, n)
		}
	}
	return found, missing
}
