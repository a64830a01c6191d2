package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	ksdfx "github.com/chazu/implicad/pkg/kernel/sdfx"
	"github.com/chazu/implicad/pkg/object"
	"github.com/chazu/implicad/pkg/tree"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// meshWarning is printed whenever a script loads a mesh.
const meshWarning = "Warning: Mesh support is currently horribly inefficient!"

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source before zygomys sees it:
//
//  1. Keyword conversion: :smooth -> "__kw_smooth" (string literal), so
//     keywords never collide with user variables.
//  2. Kebab-case to underscore: rounded-box -> rounded_box. zygomys reads
//     a hyphen inside an identifier as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"' || b[i] == '`':
			j := skipString(b, i)
			result = append(result, b[i:j]...)
			i = j
		case b[i] == ';':
			result = append(result, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, ':', '=')
			i += 2
		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++
		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

// skipString returns the index just past the string literal starting at i.
// Double-quoted strings honor backslash escapes; backtick strings do not.
func skipString(b []byte, i int) int {
	quote := b[i]
	i++
	for i < len(b) && b[i] != quote {
		if quote == '"' && b[i] == '\\' && i+1 < len(b) {
			i++
		}
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Script values
// ---------------------------------------------------------------------------

// sexpObject carries an object between builtins. A nil obj is an absent
// object: every operation on it yields another absent object.
type sexpObject struct {
	obj object.Object
}

func (o *sexpObject) SexpString(ps *zygo.PrintState) string {
	return tree.Format(o.obj)
}
func (o *sexpObject) Type() *zygo.RegisteredType { return nil }

// session is the state one evaluation shares between its builtins.
type session struct {
	dir     string
	console strings.Builder
	built   object.Object
}

func (s *session) println(line string) {
	s.console.WriteString(line)
	s.console.WriteByte('\n')
}

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// float returns keyword name as a number, or def when it is absent.
func (a kwArgs) float(name string, def float64) (float64, error) {
	v, ok := a.kw[name]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toFloats extracts every element of args as a number.
func toFloats(args []zygo.Sexp) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toObject extracts an object, which may be absent, from a Sexp.
func toObject(s zygo.Sexp) (object.Object, error) {
	if o, ok := s.(*sexpObject); ok {
		return o.obj, nil
	}
	return nil, fmt.Errorf("expected object, got %T (%s)", s, s.SexpString(nil))
}

// toObjects flattens objects and lists of objects into one slice,
// dropping absent objects.
func toObjects(args []zygo.Sexp) ([]object.Object, error) {
	var out []object.Object
	for _, a := range args {
		if items, err := sexpListToSlice(a); err == nil {
			nested, err := toObjects(items)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		o, err := toObject(a)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toVec reads a vector from x y z, or a single number used for all three.
func toVec(args []zygo.Sexp) (v3.Vec, error) {
	f, err := toFloats(args)
	if err != nil {
		return v3.Vec{}, err
	}
	switch len(f) {
	case 1:
		return v3.Vec{X: f[0], Y: f[0], Z: f[0]}, nil
	case 3:
		return v3.Vec{X: f[0], Y: f[1], Z: f[2]}, nil
	}
	return v3.Vec{}, fmt.Errorf("expected 1 or 3 numbers, got %d", len(f))
}

// display renders a value for the console: strings without quotes,
// objects as their tree outline.
func display(s zygo.Sexp) string {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S
	}
	return s.SexpString(nil)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type builtin func(s *session, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the modeling builtins into env. Source must be
// preprocessed with preprocessSource so :keyword tokens are recognizable.
func registerBuiltins(env *zygo.Zlisp, s *session) {
	builtins := map[string]builtin{
		"sphere":           sphere,
		"box":              box,
		"icylinder":        icylinder,
		"icone":            icone,
		"cylinder":         cylinder,
		"rounded_box":      roundedBox,
		"rounded_cylinder": roundedCylinder,
		"bend":             warp(object.NewBend),
		"twist":            warp(object.NewTwist),
		"union":            union,
		"intersection":     intersection,
		"difference":       difference,
		"mesh":             mesh,
		"translate":        transform(object.Object.Translate),
		"rotate":           transform(object.Object.Rotate),
		"scale":            transform(object.Object.Scale),
		"clone":            clone,
		"build":            build,
		"echo":             echo,
	}
	for name, fn := range builtins {
		// Error messages use the spelling scripts use.
		label := strings.ReplaceAll(name, "_", "-")
		env.AddFunction(name, func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
			out, err := fn(s, args)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", label, err)
			}
			return out, nil
		})
	}
}

// numbers checks that args holds between lo and hi numbers.
func numbers(args []zygo.Sexp, lo, hi int) ([]float64, error) {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return nil, fmt.Errorf("requires %d arguments, got %d", lo, len(args))
		}
		return nil, fmt.Errorf("requires %d to %d arguments, got %d", lo, hi, len(args))
	}
	return toFloats(args)
}

func wrap(o object.Object) zygo.Sexp { return &sexpObject{obj: o} }

// (sphere radius)
func sphere(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	f, err := numbers(args, 1, 1)
	if err != nil {
		return nil, err
	}
	return wrap(object.NewSphere(f[0])), nil
}

// (box x y z [smooth]) or (box x y z :smooth s)
func box(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	f, err := numbers(pa.positional, 3, 4)
	if err != nil {
		return nil, err
	}
	smooth := 0.0
	if len(f) == 4 {
		smooth = f[3]
	}
	if smooth, err = pa.float("smooth", smooth); err != nil {
		return nil, err
	}
	return wrap(object.NewBox(f[0], f[1], f[2], smooth)), nil
}

// (icylinder radius) is infinite along Z.
func icylinder(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	f, err := numbers(args, 1, 1)
	if err != nil {
		return nil, err
	}
	return wrap(object.NewCylinder(f[0])), nil
}

// (icone slope) is infinite along Z with its apex at the origin.
func icone(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	f, err := numbers(args, 1, 1)
	if err != nil {
		return nil, err
	}
	return wrap(object.NewCone(f[0], 0)), nil
}

// (cylinder length r1 [r2 [smooth]]) with an optional :smooth keyword.
// r2 defaults to r1.
func cylinder(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	f, err := numbers(pa.positional, 2, 4)
	if err != nil {
		return nil, err
	}
	r2, smooth := f[1], 0.0
	if len(f) > 2 {
		r2 = f[2]
	}
	if len(f) > 3 {
		smooth = f[3]
	}
	if smooth, err = pa.float("smooth", smooth); err != nil {
		return nil, err
	}
	return wrap(object.NewCappedCylinder(f[0], f[1], r2, smooth)), nil
}

// (rounded-box x y z round) is evaluated by sdfx.
func roundedBox(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	f, err := numbers(args, 4, 4)
	if err != nil {
		return nil, err
	}
	sh, err := ksdfx.RoundedBox(f[0], f[1], f[2], f[3])
	if err != nil {
		return nil, err
	}
	return wrap(sh), nil
}

// (rounded-cylinder height radius round) is evaluated by sdfx.
func roundedCylinder(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	f, err := numbers(args, 3, 3)
	if err != nil {
		return nil, err
	}
	sh, err := ksdfx.RoundedCylinder(f[0], f[1], f[2])
	if err != nil {
		return nil, err
	}
	return wrap(sh), nil
}

// warp adapts (bend obj width) and (twist obj height).
func warp(fn func(object.Object, float64) object.Object) builtin {
	return func(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("requires an object and a number, got %d arguments", len(args))
		}
		o, err := toObject(args[0])
		if err != nil {
			return nil, err
		}
		f, err := toFloat64(args[1])
		if err != nil {
			return nil, err
		}
		if o == nil {
			return wrap(nil), nil
		}
		return wrap(fn(o, f)), nil
	}
}

// booleanArgs reads objects, or lists of them, and an optional :smooth.
func booleanArgs(args []zygo.Sexp) ([]object.Object, float64, error) {
	pa := parseArgs(args)
	objs, err := toObjects(pa.positional)
	if err != nil {
		return nil, 0, err
	}
	smooth, err := pa.float("smooth", 0)
	return objs, smooth, err
}

// (union a b ... [:smooth r])
func union(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	objs, smooth, err := booleanArgs(args)
	if err != nil || len(objs) == 0 {
		return wrap(nil), err
	}
	u, err := object.NewUnion(objs, smooth)
	if err != nil {
		return nil, err
	}
	return wrap(u), nil
}

// (intersection a b ... [:smooth r])
func intersection(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	objs, smooth, err := booleanArgs(args)
	if err != nil || len(objs) == 0 {
		return wrap(nil), err
	}
	n, err := object.NewIntersection(objs, smooth)
	if err != nil {
		return nil, err
	}
	return wrap(n), nil
}

// (difference base a b ... [:smooth r]) removes a, b, ... from base.
func difference(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) == 0 {
		return nil, fmt.Errorf("requires a base object")
	}
	base, err := toObject(pa.positional[0])
	if err != nil {
		return nil, err
	}
	sub, err := toObjects(pa.positional[1:])
	if err != nil {
		return nil, err
	}
	smooth, err := pa.float("smooth", 0)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return wrap(nil), nil
	}
	if len(sub) == 0 {
		return wrap(base), nil
	}
	d, err := object.NewDifference(base, sub, smooth)
	if err != nil {
		return nil, err
	}
	return wrap(d), nil
}

// (mesh "file.stl") loads a triangle mesh. A file that cannot be read is
// reported on the console and yields an absent object.
func mesh(s *session, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("requires a file name")
	}
	name, err := toString(args[0])
	if err != nil {
		return nil, err
	}
	if s.dir != "" && !filepath.IsAbs(name) {
		name = filepath.Join(s.dir, name)
	}
	m, err := object.LoadMesh(name)
	if err != nil {
		s.println(fmt.Sprintf("Could not read mesh: %v", err))
		return wrap(nil), nil
	}
	s.println(meshWarning)
	return wrap(m), nil
}

// transform adapts (translate obj x y z), (rotate obj x y z) and
// (scale obj x y z). A single number applies to every axis.
func transform(fn func(object.Object, v3.Vec) object.Object) builtin {
	return func(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 && len(args) != 4 {
			return nil, fmt.Errorf("requires an object and 1 or 3 numbers, got %d arguments", len(args))
		}
		o, err := toObject(args[0])
		if err != nil {
			return nil, err
		}
		v, err := toVec(args[1:])
		if err != nil {
			return nil, err
		}
		if o == nil {
			return wrap(nil), nil
		}
		return wrap(fn(o, v)), nil
	}
}

// (clone obj)
func clone(_ *session, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("requires an object")
	}
	o, err := toObject(args[0])
	if err != nil || o == nil {
		return wrap(nil), err
	}
	return wrap(object.Clone(o)), nil
}

// (build obj) makes obj the script's result. The last call wins.
func build(s *session, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("requires an object")
	}
	o, err := toObject(args[0])
	if err != nil {
		return nil, err
	}
	s.built = o
	return args[0], nil
}

// (echo a b ...) writes its arguments to the console on one line.
func echo(s *session, args []zygo.Sexp) (zygo.Sexp, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = display(a)
	}
	s.println(strings.Join(parts, " "))
	return zygo.SexpNull, nil
}
