// Command implicad evaluates implicit-solid scripts and renders or meshes
// the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chazu/implicad/pkg/config"
	"github.com/chazu/implicad/pkg/logging"
	"github.com/spf13/cobra"
)

// errScript is returned when a script fails, after its errors are printed.
var errScript = errors.New("script failed")

type options struct {
	configPath string
	verbose    bool

	view    View
	width   int
	height  int
	upscale int

	backend    string
	resolution int
	simplify   float64
	stl        string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "implicad",
		Short:         "Model solids with signed distance scripts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			logging.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "implicad.yaml", "settings file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newRenderCmd(opts),
		newMeshCmd(opts),
		newWatchCmd(opts),
		newDescribeCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// loadConfig reads the settings file and applies flags that were set.
// The default file is optional; one named on the command line is not.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Image.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.Image.Height = opts.height
	}
	if flags.Changed("upscale") {
		cfg.Image.Upscale = opts.upscale
	}
	if flags.Changed("backend") {
		cfg.Mesh.Backend = opts.backend
	}
	if flags.Changed("resolution") {
		cfg.Mesh.Resolution = opts.resolution
	}
	if flags.Changed("simplify") {
		cfg.Mesh.SimplifyTolerance = opts.simplify
	}
	return cfg, cfg.Validate()
}

func newApp(cmd *cobra.Command, opts *options) (*App, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	return NewApp(cfg)
}

// report prints console output to stdout and findings to stderr.
func report(cmd *cobra.Command, res EvalResult) {
	fmt.Fprint(cmd.OutOrStdout(), res.Console)
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
	}
}

// evaluate runs the script and fails unless it built a valid object.
func evaluate(cmd *cobra.Command, app *App, path string) (EvalResult, error) {
	res := app.EvaluateFile(path)
	report(cmd, res)
	if len(res.Errors) > 0 {
		return res, errScript
	}
	if res.Object == nil {
		return res, fmt.Errorf("%s: nothing built, call (build obj)", path)
	}
	return res, nil
}

func addImageFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.IntVar(&opts.width, "width", 512, "image width in pixels")
	f.IntVar(&opts.height, "height", 512, "image height in pixels")
	f.IntVar(&opts.upscale, "upscale", 1, "render at 1/n size and enlarge")
	f.Float64Var(&opts.view.Yaw, "yaw", 0, "camera turn about the vertical axis, radians")
	f.Float64Var(&opts.view.Pitch, "pitch", 0, "camera turn about the horizontal axis, radians")
	f.Float64Var(&opts.view.PanX, "pan-x", 0, "camera pan, object units")
	f.Float64Var(&opts.view.PanY, "pan-y", 0, "camera pan, object units")
	f.BoolVar(&opts.view.Iterations, "iterations", false, "write ray step counts instead of shading")
}

func addMeshFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", "dual-contouring", "dual-contouring or marching-cubes")
	f.IntVar(&opts.resolution, "resolution", 64, "cells along the longest axis")
	f.Float64Var(&opts.simplify, "simplify", 0, "merge flat regions below this error")
}

func writeImage(app *App, res EvalResult, view View, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := app.Render(res.Object, view, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeMesh(cmd *cobra.Command, app *App, res EvalResult, script, path string) error {
	m, err := app.Mesh(res.Object, script)
	if err != nil {
		return err
	}
	if err := m.SaveSTL(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d triangles\n", path, m.TriangleCount())
	return nil
}

func newRenderCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render SCRIPT",
		Short: "Render a script to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			res, err := evaluate(cmd, app, args[0])
			if err != nil {
				return err
			}
			return writeImage(app, res, opts.view, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "out.png", "PNG file to write")
	addImageFlags(cmd, opts)
	return cmd
}

func newMeshCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "mesh SCRIPT",
		Short: "Tessellate a script to STL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			res, err := evaluate(cmd, app, args[0])
			if err != nil {
				return err
			}
			return writeMesh(cmd, app, res, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "out.stl", "STL file to write")
	addMeshFlags(cmd, opts)
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "watch SCRIPT",
		Short: "Re-render a script every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			w := NewWatcher(app, args[0], func(res EvalResult) {
				report(cmd, res)
				if !res.OK() {
					return
				}
				if err := writeImage(app, res, opts.view, output); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				}
				if opts.stl == "" {
					return
				}
				if err := writeMesh(cmd, app, res, args[0], opts.stl); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				}
			})
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "out.png", "PNG file to write")
	cmd.Flags().StringVar(&opts.stl, "stl", "", "also write an STL file")
	addImageFlags(cmd, opts)
	addMeshFlags(cmd, opts)
	return cmd
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe SCRIPT",
		Short: "Print the object tree a script builds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			res := app.EvaluateFile(args[0])
			report(cmd, res)
			if res.Object != nil {
				fmt.Fprintln(cmd.OutOrStdout(), app.Describe(res.Object))
			}
			if len(res.Errors) > 0 {
				return errScript
			}
			return nil
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
}

// runContext executes root with args; tests use it in place of main.
func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}
