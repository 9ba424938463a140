package settings

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/agbru/deepzoom/internal/coloring"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/geometry"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/precision"
)

func deepRequest(t *testing.T) pipeline.Request {
	t.Helper()
	const zoom = 300.0
	bits := precision.Bits(zoom)
	center, err := geometry.ParsePoint(
		"-1.7499576837060935036022145060706997072711057972483645933256160920099771480407430735112",
		"-0.0000000000000000279368016707955626664153338090785548",
		bits)
	if err != nil {
		t.Fatal(err)
	}
	probe, err := geometry.ParsePoint("-1.74995768370609350360221450607069970727110579724836459", "0", bits)
	if err != nil {
		t.Fatal(err)
	}
	color := coloring.DefaultParams()
	color.Frequency = 2.5
	color.GlowIntensity = 0
	return pipeline.Request{
		Viewport:      geometry.Viewport{Center: center, Zoom: zoom, Rotation: 0.3, Width: 640, Height: 360},
		ProbeOverride: &probe,
		MaxIter:       20000,
		Tier:          precision.ProbedExtended,
		Color:         color,
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "view.json")
	want := deepRequest(t)

	if err := FromRequest(want).Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("LoadRequest: %v", err)
	}

	if got.Viewport.Key() != want.Viewport.Key() {
		t.Errorf("viewport = %s, want %s", got.Viewport.Key(), want.Viewport.Key())
	}
	if got.ProbeOverride == nil || got.ProbeOverride.Key() != want.ProbeOverride.Key() {
		t.Errorf("probe override lost: %v", got.ProbeOverride)
	}
	if got.MaxIter != want.MaxIter || got.Tier != want.Tier || got.Color != want.Color {
		t.Errorf("got %d/%v/%+v, want %d/%v/%+v", got.MaxIter, got.Tier, got.Color, want.MaxIter, want.Tier, want.Color)
	}
}

func TestSave_Format(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "view.json")
	r := deepRequest(t)
	r.ProbeOverride = nil
	if err := FromRequest(r).Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{`"version": 1`, `"tier": "probed-extended"`, `"glow_intensity": 0`, `"re": "-1.74995768370609350360221`} {
		if !strings.Contains(text, want) {
			t.Errorf("document missing %s:\n%s", want, text)
		}
	}
	if strings.Contains(text, `"probe"`) {
		t.Error("absent probe override should be omitted")
	}
}

func TestSave_ReplacesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "view.json")
	doc := FromRequest(deepRequest(t))
	if err := doc.Save(path); err != nil {
		t.Fatal(err)
	}
	doc.Zoom = 301
	if err := doc.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Zoom != 301 {
		t.Errorf("Zoom = %v, want the second save's 301", loaded.Zoom)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "view.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only view.json", names)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o644 {
		t.Errorf("settings mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestToRequest_Errors(t *testing.T) {
	t.Parallel()
	valid := FromRequest(deepRequest(t))

	tests := []struct {
		name   string
		modify func(*Document)
	}{
		{"future version", func(d *Document) { d.Version = 7 }},
		{"bad center", func(d *Document) { d.Center.Re = "abc" }},
		{"bad probe", func(d *Document) { d.Probe.Im = "" }},
		{"zero size", func(d *Document) { d.Width = 0 }},
		{"zero cap", func(d *Document) { d.MaxIter = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := valid
			p := *valid.Probe
			d.Probe = &p
			tt.modify(&d)
			if _, err := d.ToRequest(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(bad)
	var cfgErr apperrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("malformed file: err = %v, want ConfigError", err)
	}

	badTier := filepath.Join(dir, "tier.json")
	if err := os.WriteFile(badTier, []byte(`{"version":1,"tier":"quad"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(badTier); err == nil {
		t.Error("unknown tier accepted")
	}
}

func TestSidecarPath(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"out.png":           "out.json",
		"dir/deep.zoom.png": "dir/deep.zoom.json",
		"noext":             "noext.json",
	}
	for in, want := range tests {
		if got := SidecarPath(in); got != want {
			t.Errorf("SidecarPath(%q) = %q, want %q", in, got, want)
		}
	}
}
