package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/implicad/pkg/kernel"
	"github.com/chazu/implicad/pkg/object"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(box 1 2 3 :smooth 0.2)`,
			expect: `(box 1 2 3 "__kw_smooth" 0.2)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `(echo "say \":hi\"" :x)`,
			expect: `(echo "say \":hi\"" "__kw_x")`,
		},
		{
			name:   "backtick string preserved",
			input:  "`a-b :c`",
			expect: "`a-b :c`",
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(rounded-box 1 1 1 0.1)`,
			expect: `(rounded_box 1 1 1 0.1)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5) (- x 1)`,
			expect: `(- 10 5) (- x 1)`,
		},
		{
			name:   "comment converted to // style",
			input:  ";; comment with :keyword\n(sphere 1)",
			expect: "// comment with :keyword\n(sphere 1)",
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:fade-range`,
			expect: `"__kw_fade-range"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// eval runs source and fails the test on any error.
func eval(t *testing.T, source string) *Result {
	t.Helper()
	res, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	return res
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   object.Kind
		// inside and outside are points on either side of the surface.
		inside, outside v3.Vec
	}{
		{"sphere", "(build (sphere 2))", object.KindSphere, v3.Vec{X: 1.9}, v3.Vec{X: 2.1}},
		{"box", "(build (box 2 4 6))", object.KindIntersection, v3.Vec{Z: 2.9}, v3.Vec{Z: 3.1}},
		{"smooth box", "(build (box 2 2 2 :smooth 0.2))", object.KindIntersection, v3.Vec{X: 0.9}, v3.Vec{X: 1.1}},
		{"positional smooth box", "(build (box 2 2 2 0.2))", object.KindIntersection, v3.Vec{Y: 0.9}, v3.Vec{Y: 1.1}},
		{"icylinder", "(build (icylinder 1))", object.KindCylinder, v3.Vec{X: 0.9, Z: 100}, v3.Vec{Y: 1.1}},
		{"icone", "(build (icone 1))", object.KindCone, v3.Vec{Z: 2}, v3.Vec{X: 2, Z: 1}},
		{"cylinder", "(build (cylinder 4 1))", object.KindIntersection, v3.Vec{X: 0.9, Z: 1.9}, v3.Vec{Z: 2.1}},
		{"cone", "(build (cylinder 2 1 0.5 :smooth 0))", object.KindIntersection, v3.Vec{X: 0.9, Z: -0.9}, v3.Vec{X: 0.9, Z: 0.9}},
		{"rounded box", "(build (rounded-box 2 2 2 0.1))", object.KindExternal, v3.Vec{X: 0.9}, v3.Vec{X: 1.1}},
		{"rounded cylinder", "(build (rounded-cylinder 2 1 0.1))", object.KindExternal, v3.Vec{Z: 0.9}, v3.Vec{Z: 1.1}},
		{"twist", "(build (twist (box 1 1 4) 8))", object.KindTwister, v3.Vec{}, v3.Vec{X: 1}},
		{"bend", "(build (bend (box 10 1 1) 10))", object.KindBender, v3.Vec{Y: 0.25}, v3.Vec{Y: 0.7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eval(t, tt.source)
			if res.Object == nil {
				t.Fatal("nothing built")
			}
			if k := res.Object.Describe().Kind; k != tt.kind {
				t.Errorf("kind = %s, want %s", k, tt.kind)
			}
			if v := res.Object.Value(tt.inside, object.AlwaysPrecise); v >= 0 {
				t.Errorf("value at %v = %g, want inside", tt.inside, v)
			}
			if v := res.Object.Value(tt.outside, object.AlwaysPrecise); v <= 0 {
				t.Errorf("value at %v = %g, want outside", tt.outside, v)
			}
		})
	}
}

func TestBooleans(t *testing.T) {
	tests := []struct {
		name   string
		source string
		p      v3.Vec
		want   float64
	}{
		{"union", "(build (union (sphere 1) (translate (sphere 1) 3 0 0)))", v3.Vec{X: 3}, -1},
		{"union list", "(build (union (list (sphere 1) (translate (sphere 1) 3 0 0))))", v3.Vec{X: 3}, -1},
		{"intersection", "(build (intersection (sphere 2) (translate (sphere 2) 1 0 0)))", v3.Vec{X: -1.5}, 0.5},
		{"difference", "(build (difference (sphere 2) (sphere 1)))", v3.Vec{}, 1},
		{"difference keeps base", "(build (difference (sphere 2) (sphere 1)))", v3.Vec{X: 1.5}, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eval(t, tt.source)
			if got := res.Object.Value(tt.p, object.AlwaysPrecise); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("value at %v = %g, want %g", tt.p, got, tt.want)
			}
		})
	}
}

func TestSmoothUnionKeyword(t *testing.T) {
	res := eval(t, "(build (union (sphere 1) (translate (sphere 1) 1.5 0 0) :smooth 0.3))")
	if r := res.Object.Describe().Attrs["smooth"]; r != 0.3 {
		t.Errorf("smooth = %g, want 0.3", r)
	}
}

func TestTransforms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		p      v3.Vec
		want   float64
	}{
		{"translate", "(build (translate (sphere 1) 1 2 3))", v3.Vec{X: 1, Y: 2, Z: 3}, -1},
		{"rotate", "(build (rotate (translate (sphere 1) 2 0 0) 0 0 (/ 3.141592653589793 2)))", v3.Vec{Y: 2}, -1},
		{"scale", "(build (scale (sphere 1) 2 2 2))", v3.Vec{}, -2},
		{"uniform scale", "(build (scale (sphere 1) 3))", v3.Vec{X: 3}, 0},
		{"clone", "(def s (sphere 1))\n(build (union (clone s) (translate s 5 0 0)))", v3.Vec{}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eval(t, tt.source)
			if got := res.Object.Value(tt.p, object.AlwaysPrecise); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("value at %v = %g, want %g", tt.p, got, tt.want)
			}
		})
	}
}

func TestBuildLastCallWins(t *testing.T) {
	res := eval(t, "(build (sphere 1))\n(build (sphere 3))")
	if got := res.Object.Value(v3.Vec{}, object.AlwaysPrecise); got != -3 {
		t.Errorf("value = %g, want -3 from the second build", got)
	}
}

func TestConsole(t *testing.T) {
	res := eval(t, `(echo "radius" 2)`+"\n"+`(echo)`+"\n"+`(echo (sphere 1))`)
	want := "radius 2\n\nsphere radius=1 bbox=[(-1 -1 -1) (1 1 1)]\n"
	if res.Console != want {
		t.Errorf("console = %q, want %q", res.Console, want)
	}
	if res.Object != nil {
		t.Error("echo should not build")
	}
}

func TestMissingMesh(t *testing.T) {
	res := eval(t, `(def m (mesh "no-such-file.stl"))
(build (translate m 1 0 0))`)
	if res.Object != nil {
		t.Errorf("expected an absent object, got %v", res.Object)
	}
	if !strings.HasPrefix(res.Console, "Could not read mesh: ") {
		t.Errorf("console = %q", res.Console)
	}
}

func TestAbsentObjectsAreSkipped(t *testing.T) {
	res := eval(t, `(build (union (mesh "missing.stl") (sphere 1)))`)
	if res.Object == nil || res.Object.Describe().Kind != object.KindUnion {
		t.Fatalf("got %v, want a union of the sphere", res.Object)
	}
	if n := len(res.Object.Describe().Children); n != 1 {
		t.Errorf("union has %d children, want 1", n)
	}
}

func TestMeshRelativeToScript(t *testing.T) {
	dir := t.TempDir()
	var tet kernel.Mesh
	a, b, c, d := v3.Vec{}, v3.Vec{X: 1}, v3.Vec{Y: 1}, v3.Vec{Z: 1}
	tet.AddTriangle(a, c, b)
	tet.AddTriangle(a, b, d)
	tet.AddTriangle(a, d, c)
	tet.AddTriangle(b, c, d)
	if err := tet.SaveSTL(filepath.Join(dir, "tet.stl")); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "part.lisp")
	if err := os.WriteFile(script, []byte(`(build (mesh "tet.stl"))`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, evalErrs, err := NewEngine().EvaluateFile(script)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("%v %v", err, evalErrs)
	}
	if res.Object == nil || res.Object.Describe().Kind != object.KindMesh {
		t.Fatalf("got %v, want a mesh", res.Object)
	}
	if res.Console != meshWarning+"\n" {
		t.Errorf("console = %q", res.Console)
	}
	if v := res.Object.Value(v3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, object.AlwaysPrecise); v >= 0 {
		t.Errorf("value inside tetrahedron = %g", v)
	}
}

func TestBuiltinArgumentErrors(t *testing.T) {
	sources := []string{
		"(sphere)",
		"(sphere 1 2)",
		`(sphere "one")`,
		"(box 1 2)",
		"(box 1 2 3 :smooth \"soft\")",
		"(cylinder 1)",
		"(translate (sphere 1) 1 2)",
		"(translate 1 2 3 4)",
		"(bend (sphere 1))",
		"(union (sphere 1) 2)",
		"(difference)",
		"(mesh 3)",
		"(build)",
		"(rounded-box 1 1 1)",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			_, evalErrs, err := NewEngine().Evaluate(src)
			if err != nil {
				t.Fatalf("fatal error: %v", err)
			}
			if len(evalErrs) == 0 {
				t.Errorf("expected an eval error")
			}
		})
	}
}

func TestVariablesAndLists(t *testing.T) {
	src := `(def r 0.5)
(def ball (sphere r))
(def parts (list ball (translate ball (* 1 2) 0 0) (translate ball (+ 2 2) 0 0)))
(build (union parts))`
	res := eval(t, src)
	for i := 0; i < 3; i++ {
		p := v3.Vec{X: float64(2 * i)}
		if v := res.Object.Value(p, object.AlwaysPrecise); math.Abs(v+0.5) > 1e-9 {
			t.Errorf("value at %v = %g, want -0.5", p, v)
		}
	}
	if n := len(res.Object.Describe().Children); n != 3 {
		t.Errorf("union has %d children, want 3", n)
	}
}

func ExampleEngine_Evaluate() {
	res, _, _ := NewEngine().Evaluate(`(echo "hello") (build (sphere 1))`)
	fmt.Print(res.Console)
	fmt.Println(res.Object.Describe().Kind)
	// Output:
	// hello
	// sphere
}
