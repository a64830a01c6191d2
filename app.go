package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/chazu/implicad/pkg/config"
	"github.com/chazu/implicad/pkg/engine"
	"github.com/chazu/implicad/pkg/kernel"
	"github.com/chazu/implicad/pkg/object"
	"github.com/chazu/implicad/pkg/render"
	"github.com/chazu/implicad/pkg/tessellate"
	"github.com/chazu/implicad/pkg/tree"
)

// App ties the pipeline together: script -> object -> image or mesh.
type App struct {
	cfg      config.Config
	engine   *engine.Engine
	renderer *render.Renderer
	mesher   kernel.Mesher
}

// EvalErrorData is a script error or validation finding.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalErrorData) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalResult is the outcome of running a script. Object is nil when the
// script failed, built nothing, or built something invalid.
type EvalResult struct {
	Object   object.Object
	Console  string
	Errors   []EvalErrorData
	Warnings []EvalErrorData
}

// OK reports whether the script produced an object without errors.
func (r EvalResult) OK() bool {
	return r.Object != nil && len(r.Errors) == 0
}

// NewApp creates an App from cfg.
func NewApp(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mesher, err := tessellate.ForName(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:      cfg,
		engine:   engine.NewEngineWithConfig(cfg.Engine),
		renderer: render.NewRenderer(cfg.Render),
		mesher:   mesher,
	}, nil
}

// Evaluate runs script source.
func (a *App) Evaluate(source string) EvalResult {
	return a.collect(a.engine.Evaluate(source))
}

// EvaluateFile runs the script at path.
func (a *App) EvaluateFile(path string) EvalResult {
	return a.collect(a.engine.EvaluateFile(path))
}

func (a *App) collect(res *engine.Result, evalErrs []engine.EvalError, err error) EvalResult {
	var result EvalResult
	if err != nil {
		// Fatal error (panic, timeout, unreadable script).
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	result.Console = res.Console
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	for _, f := range tree.Validate(res.Object) {
		d := EvalErrorData{Message: f.Path + ": " + f.Message}
		if f.Severity == tree.SeverityError {
			result.Errors = append(result.Errors, d)
		} else {
			result.Warnings = append(result.Warnings, d)
		}
	}
	if len(result.Errors) == 0 {
		result.Object = res.Object
	}
	return result
}

// View places the camera for a still frame. Angles are in radians and
// pans in object units.
type View struct {
	Yaw, Pitch float64
	PanX, PanY float64
	// Iterations writes the ray step counts instead of the shading.
	Iterations bool
}

// Render draws o from view and writes the frame to w as PNG.
func (a *App) Render(o object.Object, view View, w io.Writer) error {
	up := a.cfg.Image.Upscale
	width := max(1, a.cfg.Image.Width/up)
	height := max(1, a.cfg.Image.Height/up)

	a.renderer.SetObject(o)
	a.renderer.ResetCamera()
	a.renderer.RotateFromScreen(view.Yaw, view.Pitch)
	a.renderer.TranslateFromScreen(view.PanX, view.PanY)

	buf, err := a.renderer.Frame(width, height)
	if err != nil {
		return err
	}
	toImage := render.Image
	if view.Iterations {
		toImage = render.IterationImage
	}
	img, err := toImage(buf, width, height)
	if err != nil {
		return err
	}
	return render.EncodePNG(w, render.Upscale(img, up))
}

// Mesh tessellates o with the configured backend. name labels the mesh.
func (a *App) Mesh(o object.Object, name string) (*kernel.Mesh, error) {
	m, err := a.mesher.ToMesh(o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.mesher.Name(), err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return m, nil
}

// Describe outlines o with node statistics.
func (a *App) Describe(o object.Object) string {
	s := tree.Count(o)
	return fmt.Sprintf("%s\n%d nodes (%d distinct), depth %d, %d leaves",
		tree.Format(o), s.Nodes, s.Distinct, s.Depth, s.Leaves)
}
