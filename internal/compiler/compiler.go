// Package compiler orchestrates one AgentScript source file through the
// full pipeline: lexer -> parser -> stdlib resolver -> checker -> codegen
// -> printer. Modeled on the teacher's bundler.Bundle/Link split: one
// driver type owns phase order and short-circuits on the checker's
// failure semantics (§4.6).
package compiler

import (
	"strings"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/buildcache"
	"github.com/agentscript-lang/agentscript/internal/checker"
	"github.com/agentscript-lang/agentscript/internal/codegen"
	"github.com/agentscript-lang/agentscript/internal/dslfw"
	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/parser"
	"github.com/agentscript-lang/agentscript/internal/printer"
	"github.com/agentscript-lang/agentscript/internal/prompthandler"
	"github.com/agentscript-lang/agentscript/internal/stdlib"
)

// Result is what Compile returns: the emitted ESM text (empty on failure)
// plus every diagnostic collected across all phases, sorted by span start
// (see logger.Log.Diagnostics).
type Result struct {
	JS          string
	Diagnostics []logger.Diagnostic
	Source      string
}

// Compiler owns the process-wide state that should be shared across
// files in one run: the stdlib resolver's LRU cache, the DSL handler
// registry, and the on-disk build cache.
type Compiler struct {
	resolver *stdlib.Resolver
	registry *dslfw.Registry
	cache    *buildcache.Cache
}

// New builds a Compiler with the reference handlers registered (§4.5).
// cache may be nil, which disables the on-disk build cache.
func New(cache *buildcache.Cache) *Compiler {
	reg := dslfw.NewRegistry()
	reg.Register("prompt", prompthandler.New())
	return &Compiler{
		resolver: stdlib.New(),
		registry: reg,
		cache:    cache,
	}
}

// Check runs the pipeline through the type checker only (§6 "check"):
// lex, parse, splice stdlib imports, check. No codegen, no cache lookup
// or write — its diagnostics are exactly the checker's verdict.
func (c *Compiler) Check(path, source string) Result {
	log := logger.NewLog()
	mod := parser.Parse(log, source)
	c.spliceStdlib(mod, log)
	checker.Check(log, mod)
	return Result{Diagnostics: log.Diagnostics(), Source: source}
}

// Compile runs the full pipeline over source (§6 "build"): lex, parse,
// splice stdlib imports, check, codegen, emit. path is used only for
// build-cache keying.
func (c *Compiler) Compile(path, source string) Result {
	if c.cache != nil {
		if cached, ok := c.cache.Lookup(path, source); ok {
			return Result{JS: cached, Source: source}
		}
	}

	log := logger.NewLog()
	mod := parser.Parse(log, source)

	c.spliceStdlib(mod, log)

	checker.Check(log, mod)

	if log.HasErrors() {
		return Result{Diagnostics: log.Diagnostics(), Source: source}
	}

	gen := codegen.New(log, c.registry)
	jsMod := gen.Generate(mod)

	if log.HasErrors() {
		return Result{Diagnostics: log.Diagnostics(), Source: source}
	}

	js := printer.Print(jsMod)

	if c.cache != nil {
		c.cache.Store(path, source, js)
	}

	return Result{JS: js, Diagnostics: log.Diagnostics(), Source: source}
}

// spliceStdlib resolves every "std:..." import in mod and appends the
// requested externs directly into mod.Items, so the checker and codegen
// see them as ordinary extern declarations (§4.4: "splices the named
// declarations into the current compilation").
func (c *Compiler) spliceStdlib(mod *ast.Module, log *logger.Log) {
	var stdImports []*ast.Import
	for _, item := range mod.Items {
		if imp, ok := item.Data.(*ast.Import); ok && strings.HasPrefix(imp.Path, "std:") {
			stdImports = append(stdImports, imp)
		}
	}

	for _, imp := range stdImports {
		stdMod, _, resolveLog, err := c.resolver.Resolve(imp.Path)
		if err != nil {
			log.AddError(logger.Span{}, err.Error())
			continue
		}
		if resolveLog != nil {
			for _, d := range resolveLog.Diagnostics() {
				log.AddError(d.Span, d.Message)
			}
		}
		found, missing := stdlib.LookupNames(stdMod, imp.Names)
		for _, name := range missing {
			log.AddErrorf(logger.Span{}, "stdlib module %q has no export %q", imp.Path, name)
		}
		for _, name := range imp.Names {
			if item, ok := found[name]; ok {
				mod.Items = append(mod.Items, item)
			}
		}
	}
}
