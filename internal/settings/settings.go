// Package settings saves and restores a view as a JSON document, so an image
// can be reproduced or reopened in the explorer later.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agbru/deepzoom/internal/coloring"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/precision"
)

// CurrentVersion is the document format written by Save.
const CurrentVersion = 1

// Coordinate is a point in decimal text. Precision is the mantissa size it
// was written from; Load never parses with fewer bits.
type Coordinate struct {
	Re        string `json:"re"`
	Im        string `json:"im"`
	Precision uint   `json:"precision"`
}

// Document is the on-disk form of a render request.
type Document struct {
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"saved_at"`
	Center   Coordinate      `json:"center"`
	Zoom     float64         `json:"zoom"`
	Rotation float64         `json:"rotation"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	MaxIter  uint32          `json:"max_iter"`
	Tier     precision.Tier  `json:"tier"`
	Probe    *Coordinate     `json:"probe,omitempty"`
	Color    coloring.Params `json:"color"`
}

func coordinate(p geometry.Point) Coordinate {
	return Coordinate{
		Re:        p.Re.Text('g', -1),
		Im:        p.Im.Text('g', -1),
		Precision: max(p.Re.Prec(), p.Im.Prec()),
	}
}

func (c Coordinate) point(zoom float64) (geometry.Point, error) {
	return geometry.ParsePoint(c.Re, c.Im, max(c.Precision, precision.Bits(zoom)))
}

// FromRequest captures r.
func FromRequest(r pipeline.Request) Document {
	d := Document{
		Version:  CurrentVersion,
		SavedAt:  time.Now().UTC(),
		Center:   coordinate(r.Viewport.Center),
		Zoom:     r.Viewport.Zoom,
		Rotation: r.Viewport.Rotation,
		Width:    r.Viewport.Width,
		Height:   r.Viewport.Height,
		MaxIter:  r.MaxIter,
		Tier:     r.Tier,
		Color:    r.Color,
	}
	if r.ProbeOverride != nil {
		p := coordinate(*r.ProbeOverride)
		d.Probe = &p
	}
	return d
}

// ToRequest rebuilds the request. The result is validated.
func (d Document) ToRequest() (pipeline.Request, error) {
	if d.Version != CurrentVersion {
		return pipeline.Request{}, apperrors.NewConfigError("unsupported settings version %d (want %d)", d.Version, CurrentVersion)
	}
	center, err := d.Center.point(d.Zoom)
	if err != nil {
		return pipeline.Request{}, err
	}
	r := pipeline.Request{
		Viewport: geometry.Viewport{
			Center:   center,
			Zoom:     d.Zoom,
			Rotation: d.Rotation,
			Width:    d.Width,
			Height:   d.Height,
		},
		MaxIter: d.MaxIter,
		Tier:    d.Tier,
		Color:   d.Color,
	}
	if d.Probe != nil {
		p, err := d.Probe.point(d.Zoom)
		if err != nil {
			return pipeline.Request{}, err
		}
		r.ProbeOverride = &p
	}
	return r, r.Validate()
}

// Save writes the document to path as indented JSON, creating parent
// directories as needed. The file is replaced atomically.
func (d Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".deepzoom-*.json")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Load reads a document from path. Malformed documents are ConfigErrors.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read settings: %w", err)
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, apperrors.NewConfigError("parse settings %s: %v", path, err)
	}
	return d, nil
}

// LoadRequest reads path and rebuilds its request.
func LoadRequest(path string) (pipeline.Request, error) {
	d, err := Load(path)
	if err != nil {
		return pipeline.Request{}, err
	}
	return d.ToRequest()
}

// SidecarPath returns the settings path stored next to an image.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}
