// Package config loads the YAML settings shared by the command line tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/implicad/pkg/engine"
	"github.com/chazu/implicad/pkg/render"
	"github.com/chazu/implicad/pkg/tessellate"
	"gopkg.in/yaml.v3"
)

// Image sizes the frames written by the render command.
type Image struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Upscale renders at 1/Upscale of the size and enlarges the result.
	Upscale int `yaml:"upscale"`
}

// Config is the root of a settings file. Sections left out of the file
// keep their defaults.
type Config struct {
	Engine engine.Config     `yaml:"engine"`
	Render render.Config     `yaml:"render"`
	Image  Image             `yaml:"image"`
	Mesh   tessellate.Config `yaml:"mesh"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Engine: engine.DefaultConfig(),
		Render: render.DefaultConfig(),
		Image:  Image{Width: 512, Height: 512, Upscale: 1},
		Mesh:   tessellate.DefaultConfig(),
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error when optional is set.
func Load(path string, optional bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting out of range.
func (c Config) Validate() error {
	switch {
	case c.Engine.Timeout < 0:
		return fmt.Errorf("engine.timeout is %s, must not be negative", c.Engine.Timeout)
	case c.Engine.Params.FadeRange < 0:
		return fmt.Errorf("engine.params.fade_range is %g, must not be negative", c.Engine.Params.FadeRange)
	case c.Engine.Params.RMultiplier < 0:
		return fmt.Errorf("engine.params.r_multiplier is %g, must not be negative", c.Engine.Params.RMultiplier)
	case c.Render.Workers < 0:
		return fmt.Errorf("render.workers is %d, must not be negative", c.Render.Workers)
	case c.Render.MaxIterations < 0:
		return fmt.Errorf("render.max_iterations is %d, must not be negative", c.Render.MaxIterations)
	case c.Image.Width <= 0 || c.Image.Height <= 0:
		return fmt.Errorf("image size is %dx%d, must be positive", c.Image.Width, c.Image.Height)
	case c.Image.Upscale < 1:
		return fmt.Errorf("image.upscale is %d, must be at least 1", c.Image.Upscale)
	case c.Mesh.Resolution <= 0:
		return fmt.Errorf("mesh.resolution is %d, must be positive", c.Mesh.Resolution)
	case c.Mesh.SimplifyTolerance < 0:
		return fmt.Errorf("mesh.simplify_tolerance is %g, must not be negative", c.Mesh.SimplifyTolerance)
	case c.Mesh.Workers < 0:
		return fmt.Errorf("mesh.workers is %d, must not be negative", c.Mesh.Workers)
	}
	if _, err := tessellate.ForName(c.Mesh); err != nil {
		return err
	}
	return nil
}

// Write encodes c as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return enc.Close()
}
