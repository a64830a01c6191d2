package tree

import (
	"strings"
	"testing"

	"github.com/chazu/implicad/pkg/object"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestBuildNil(t *testing.T) {
	if n := Build(nil); n != nil {
		t.Fatalf("Build(nil) = %v, want nil", n)
	}
	if got := Format(nil); got != "<none>" {
		t.Errorf("Format(nil) = %q", got)
	}
	if s := Count(nil); s != (Stats{}) {
		t.Errorf("Count(nil) = %+v", s)
	}
}

func TestBuildPaths(t *testing.T) {
	box := object.NewBox(2, 2, 2, 0).Translate(v3.Vec{X: 1})
	n := Build(box)
	if n.Kind != object.KindTransformer {
		t.Fatalf("root kind = %s, want transformer", n.Kind)
	}
	var paths []string
	n.Walk(func(n *Node) { paths = append(paths, n.Path) })
	want := []string{
		"transformer",
		"transformer/0:intersection",
		"transformer/0:intersection/0:slab",
		"transformer/0:intersection/1:slab",
		"transformer/0:intersection/2:slab",
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("paths = %v\nwant %v", paths, want)
	}
}

func TestFormat(t *testing.T) {
	u, err := object.NewUnion([]object.Object{object.NewSphere(1), object.NewCylinder(0.5)}, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	got := Format(u)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "union fade_range=0.1 r_multiplier=1 smooth=0.25 ") {
		t.Errorf("root line = %q", lines[0])
	}
	if lines[1] != "  sphere radius=1 bbox=[(-1 -1 -1) (1 1 1)]" {
		t.Errorf("sphere line = %q", lines[1])
	}
	if lines[2] != "  cylinder radius=0.5 bbox=unbounded" {
		t.Errorf("cylinder line = %q", lines[2])
	}
}

func TestCountSharedSubtrees(t *testing.T) {
	s := object.NewSphere(1)
	u, err := object.NewUnion([]object.Object{s, object.Clone(s)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := Count(u)
	want := Stats{Nodes: 3, Distinct: 2, Depth: 2, Leaves: 2}
	if got != want {
		t.Errorf("Count = %+v, want %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		obj        object.Object
		wantErrors int
		wantWarn   string
	}{
		{"sphere", object.NewSphere(1), 0, ""},
		{"box", object.NewBox(1, 2, 3, 0.1), 0, ""},
		{"negative radius", object.NewSphere(-1), 1, "empty"},
		{"zero slab", object.NewBox(0, 1, 1, 0), 1, ""},
		{"negative smooth", object.NewBox(1, 1, 1, -0.5), 1, ""},
		{"infinite cylinder", object.NewCylinder(1), 0, "unbounded"},
		{"zero bend", object.NewBend(object.NewSphere(1), 0), 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Validate(tt.obj)
			if got := len(Errors(findings)); got != tt.wantErrors {
				t.Errorf("got %d errors, want %d: %v", got, tt.wantErrors, findings)
			}
			if tt.wantWarn == "" {
				return
			}
			for _, f := range findings {
				if f.Severity == SeverityWarning && strings.Contains(f.Message, tt.wantWarn) {
					return
				}
			}
			t.Errorf("no warning containing %q in %v", tt.wantWarn, findings)
		})
	}
}

func TestFindingError(t *testing.T) {
	f := Finding{Path: "sphere", Message: "radius is -1.0000, must be positive", Severity: SeverityError}
	want := "[error] sphere: radius is -1.0000, must be positive"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
	if s := Severity(7).String(); s != "Severity(7)" {
		t.Errorf("String() = %q", s)
	}
}
