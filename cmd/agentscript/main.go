// Command agentscript is the compiler front-end (§6): "build" compiles one
// or more ".ag" files to ESM, "check" runs the pipeline through the type
// checker only. Modeled on the teacher's cmd/esbuild flag/cobra-free CLI
// shape, but built on github.com/spf13/cobra (named in the AMBIENT STACK)
// since this module already carries that dependency.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agentscript-lang/agentscript/internal/buildcache"
	"github.com/agentscript-lang/agentscript/internal/compiler"
	"github.com/agentscript-lang/agentscript/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional: AGENTSCRIPT_CACHE_DB and friends can be set there
	// instead of the shell, per the AMBIENT STACK's godotenv wiring. A
	// missing .env is not an error.
	_ = godotenv.Load()

	var explain bool
	var outPath string
	var noCache bool

	root := &cobra.Command{
		Use:           "agentscript",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&explain, "explain", false, "show source context under each diagnostic")
	root.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the on-disk build cache")

	exitCode := 0

	buildCmd := &cobra.Command{
		Use:   "build <file-or-glob>...",
		Short: "compile AgentScript source to ESM",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandGlobs(args)
			if err != nil {
				return err
			}
			cache := openCache(noCache)
			c := compiler.New(cache)
			anyError := false
			for _, path := range files {
				if !runBuild(c, path, outPath, explain) {
					anyError = true
				}
			}
			if anyError {
				exitCode = 1
			}
			return nil
		},
	}
	buildCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (single-file build only; default <file>.js)")

	checkCmd := &cobra.Command{
		Use:   "check <file-or-glob>...",
		Short: "type-check AgentScript source without emitting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandGlobs(args)
			if err != nil {
				return err
			}
			c := compiler.New(nil)
			anyError := false
			for _, path := range files {
				if !runCheck(c, path, explain) {
					anyError = true
				}
			}
			if anyError {
				exitCode = 1
			}
			return nil
		},
	}

	root.AddCommand(buildCmd, checkCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentscript:", err)
		return 1
	}
	return exitCode
}

// expandGlobs resolves doublestar globs (e.g. "src/**/*.ag") in args,
// per SPEC_FULL.md's multi-file build feature; a plain path that contains
// no glob metacharacters is passed through unchanged even if it doesn't
// exist yet, so the caller's own "file not found" message applies.
func expandGlobs(args []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			if !seen[arg] {
				out = append(out, arg)
				seen[arg] = true
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", arg, err)
		}
		for _, m := range matches {
			if !seen[m] {
				out = append(out, m)
				seen[m] = true
			}
		}
	}
	return out, nil
}

func openCache(disabled bool) *buildcache.Cache {
	if disabled {
		return nil
	}
	dbPath := os.Getenv("AGENTSCRIPT_CACHE_DB")
	if dbPath == "" {
		dbPath = ".agentscript-cache.db"
	}
	cache, err := buildcache.Open(dbPath)
	if err != nil {
		return nil
	}
	return cache
}

func runBuild(c *compiler.Compiler, path, outPath string, explain bool) bool {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentscript: %s: %v\n", path, err)
		return false
	}
	result := c.Compile(path, string(source))
	printDiagnostics(path, result.Source, result.Diagnostics, explain)
	if hasError(result.Diagnostics) {
		return false
	}

	out := outPath
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".js"
	}
	if err := os.WriteFile(out, []byte(result.JS), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "agentscript: %s: %v\n", out, err)
		return false
	}
	return true
}

func runCheck(c *compiler.Compiler, path string, explain bool) bool {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentscript: %s: %v\n", path, err)
		return false
	}
	result := c.Check(path, string(source))
	printDiagnostics(path, result.Source, result.Diagnostics, explain)
	return !hasError(result.Diagnostics)
}

func hasError(diags []logger.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == logger.SeverityError {
			return true
		}
	}
	return false
}

func printDiagnostics(path, source string, diags []logger.Diagnostic, explain bool) {
	for _, d := range diags {
		if explain {
			fmt.Fprintln(os.Stderr, logger.Explain(path, source, d))
		} else {
			fmt.Fprintln(os.Stderr, logger.Format(path, source, d))
		}
	}
}
