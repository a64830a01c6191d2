// Package engine evaluates modeling scripts. It wraps zygomys in a
// sandboxed environment whose builtins construct implicit objects; a
// script hands its final solid to `build` and may write to a console.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/implicad/pkg/logging"
	"github.com/chazu/implicad/pkg/object"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the output of a script: the object passed to the last call
// of `build`, if any, and everything the script printed.
type Result struct {
	Object  object.Object
	Console string
}

// Config tunes an Engine.
type Config struct {
	// Timeout bounds a single evaluation. Zero means EvalTimeout.
	Timeout time.Duration `yaml:"timeout"`
	// Params are applied to the built object. The zero value keeps the
	// defaults objects are constructed with.
	Params object.Params `yaml:"params"`
}

// DefaultConfig returns the configuration used by NewEngine.
func DefaultConfig() Config {
	return Config{Timeout: EvalTimeout, Params: object.DefaultParams()}
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	cfg Config

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an Engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultConfig())
}

// NewEngineWithConfig creates an Engine using cfg.
func NewEngineWithConfig(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = EvalTimeout
	}
	return &Engine{cfg: cfg}
}

// Evaluate runs source and returns what it built. Relative mesh paths
// resolve against the working directory.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns result with the console output so
//     far and no object + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	return e.run(source, "")
}

// EvaluateFile reads and runs the script at path. Relative mesh paths
// resolve against the script's directory.
func (e *Engine) EvaluateFile(path string) (*Result, []EvalError, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: read script: %w", err)
	}
	return e.run(string(src), filepath.Dir(path))
}

func (e *Engine) run(source, dir string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := e.evaluate(source, dir)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.cfg.Timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source, dir string) (*Result, []EvalError, error) {
	// Empty source is a valid program that builds nothing.
	if strings.TrimSpace(source) == "" {
		return &Result{}, nil, nil
	}

	start := time.Now()
	// Sandbox mode keeps user code away from the filesystem and syscalls;
	// only the mesh builtin reads files, on the script's behalf.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	s := &session{dir: dir}
	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return &Result{Console: s.console.String()}, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return &Result{Console: s.console.String()}, parseZygomysError(err), nil
	}

	res := &Result{Object: s.built, Console: s.console.String()}
	if res.Object != nil && e.cfg.Params != (object.Params{}) {
		res.Object = res.Object.SetParameters(e.cfg.Params)
	}
	logging.Logger().Debug("engine: script evaluated", "built", res.Object != nil, "elapsed", time.Since(start))
	return res, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// No line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
