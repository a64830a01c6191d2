package tree

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/chazu/implicad/pkg/object"
)

// Severity indicates whether a finding makes the tree unusable or is
// merely informational.
type Severity int

const (
	SeverityError   Severity = iota // the solid cannot be produced
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Finding describes a single problem with a node.
type Finding struct {
	Path     string
	Message  string
	Severity Severity
}

func (f Finding) Error() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Path, f.Message)
}

// positiveAttrs must be strictly positive wherever they appear.
var positiveAttrs = map[string]bool{
	"radius":    true,
	"thickness": true,
	"width":     true,
	"height":    true,
	"scale_min": true,
}

// Validate checks the tree rooted at o and returns its findings, errors
// and warnings mixed in tree order. A nil object has no findings.
func Validate(o object.Object) []Finding {
	root := Build(o)
	if root == nil {
		return nil
	}
	var out []Finding
	root.Walk(func(n *Node) {
		out = append(out, checkAttrs(n)...)
		out = append(out, checkBounds(n)...)
	})
	if isUnbounded(root.BBox) && !root.BBox.IsEmpty() {
		out = append(out, Finding{
			Path:     root.Path,
			Message:  "tree is unbounded and cannot be meshed",
			Severity: SeverityWarning,
		})
	}
	return out
}

// Errors filters findings down to those with SeverityError.
func Errors(findings []Finding) []Finding {
	var errs []Finding
	for _, f := range findings {
		if f.Severity == SeverityError {
			errs = append(errs, f)
		}
	}
	return errs
}

func checkAttrs(n *Node) []Finding {
	var out []Finding
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		v := n.Attrs[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out = append(out, Finding{
				Path:     n.Path,
				Message:  fmt.Sprintf("%s is %g, must be finite", k, v),
				Severity: SeverityError,
			})
			continue
		}
		if positiveAttrs[k] && v <= 0 {
			out = append(out, Finding{
				Path:     n.Path,
				Message:  fmt.Sprintf("%s is %.4f, must be positive", k, v),
				Severity: SeverityError,
			})
		}
		if k == "smooth" && v < 0 {
			out = append(out, Finding{
				Path:     n.Path,
				Message:  fmt.Sprintf("smooth is %.4f, must not be negative", v),
				Severity: SeverityError,
			})
		}
	}
	if n.Kind == object.KindMesh {
		out = append(out, Finding{
			Path:     n.Path,
			Message:  fmt.Sprintf("mesh with %.0f triangles evaluates every triangle per sample", n.Attrs["triangles"]),
			Severity: SeverityWarning,
		})
	}
	return out
}

func checkBounds(n *Node) []Finding {
	if !n.BBox.IsEmpty() {
		return nil
	}
	return []Finding{{
		Path:     n.Path,
		Message:  "bounding box is empty, the node contributes nothing",
		Severity: SeverityWarning,
	}}
}
