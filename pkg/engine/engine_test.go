package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/implicad/pkg/object"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestEvaluateEmptyString(t *testing.T) {
	for _, src := range []string{"", "   \n\t  \n  "} {
		res, evalErrs, err := NewEngine().Evaluate(src)
		if err != nil {
			t.Fatalf("unexpected fatal error: %v", err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("unexpected eval errors: %v", evalErrs)
		}
		if res == nil {
			t.Fatal("expected non-nil result")
		}
		if res.Object != nil || res.Console != "" {
			t.Errorf("expected empty result, got %+v", res)
		}
	}
}

func TestEvaluateWithoutBuild(t *testing.T) {
	eng := NewEngine()

	// Valid Lisp that never calls build produces no object.
	res, evalErrs, err := eng.Evaluate("(def x 10)\n(def y 20)\n(+ x y)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if res.Object != nil {
		t.Errorf("expected no object, got %v", res.Object)
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	// Unmatched paren is a parse error.
	res, evalErrs, err := eng.Evaluate("(+ 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res.Object != nil {
		t.Fatal("expected no object on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	res, evalErrs, err := NewEngine().Evaluate("(build (sphere undefined_radius))")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res.Object != nil {
		t.Fatal("expected no object on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvaluateErrorKeepsConsole(t *testing.T) {
	res, evalErrs, err := NewEngine().Evaluate(`(echo "before")` + "\n(sphere \"big\")")
	if err != nil {
		t.Fatal(err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error")
	}
	if res.Console != "before\n" {
		t.Errorf("console = %q, want %q", res.Console, "before\n")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	if s := e.Error(); s != "line 5: something went wrong" {
		t.Errorf("Error() = %q", s)
	}
	e2 := EvalError{Message: "no location"}
	if s := e2.Error(); strings.Contains(s, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()
	var first string
	for i := 0; i < 5; i++ {
		res, evalErrs, err := eng.Evaluate("(build (translate (sphere 1) 1 2 3))")
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("iteration %d: %v %v", i, err, evalErrs)
		}
		got := res.Object.BBox().String()
		if i == 0 {
			first = got
		} else if got != first {
			t.Errorf("iteration %d: bbox %s, want %s", i, got, first)
		}
	}
}

func TestEvaluateTimeout(t *testing.T) {
	// waitWithTimeout is exercised directly with a channel that never sends.
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult)

	start := time.Now()
	_, _, err := waitWithTimeout(ch, 1, &mu, &gen, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error message, got: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout took too long")
	}
}

func TestEvaluateTimeoutConfig(t *testing.T) {
	eng := NewEngineWithConfig(Config{})
	if eng.cfg.Timeout != EvalTimeout {
		t.Errorf("zero timeout = %s, want %s", eng.cfg.Timeout, EvalTimeout)
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2) // Current generation is 2

	ch := make(chan evalResult, 1)
	ch <- evalResult{result: &Result{}}

	// Pass generation 1 (stale).
	_, _, err := waitWithTimeout(ch, 1, &mu, &gen, EvalTimeout)
	if err == nil {
		t.Fatal("expected error for stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

func TestParamsAppliedToBuiltObject(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Params = object.Params{FadeRange: 0.2, RMultiplier: 2}
	res, evalErrs, err := NewEngineWithConfig(cfg).Evaluate("(build (box 1 1 1 :smooth 0.1))")
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("%v %v", err, evalErrs)
	}
	attrs := res.Object.Describe().Attrs
	if attrs["r_multiplier"] != 2 || attrs["fade_range"] != 0.2 {
		t.Errorf("attrs = %v", attrs)
	}
}

func TestEvaluateFileMissing(t *testing.T) {
	_, _, err := NewEngine().EvaluateFile(filepath.Join(t.TempDir(), "missing.lisp"))
	if err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestEvaluateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.lisp")
	src := "; a ball\n(build (sphere 2))\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	res, evalErrs, err := NewEngine().EvaluateFile(path)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("%v %v", err, evalErrs)
	}
	if got := res.Object.Value(v3.Vec{}, object.AlwaysPrecise); got != -2 {
		t.Errorf("value at origin = %g, want -2", got)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 3: sphere: requires 1 arguments, got 2",
			wantLine: 3,
			wantMsg:  "requires 1 arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
