package app

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agbru/deepzoom/internal/compute"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/settings"
)

func serialDevice(string, int) (compute.Device, error) { return compute.NewSerial(), nil }

func newTestApp(t *testing.T, args ...string) *Application {
	t.Helper()
	a, err := New(append([]string{"deepzoom"}, args...), io.Discard, WithDeviceOpener(serialDevice))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	if a.Config.Workers < 1 {
		t.Errorf("adaptive workers not applied: %d", a.Config.Workers)
	}
	if a.Request.Viewport.Width != a.Config.Width || a.Request.MaxIter != uint32(a.Config.MaxIter) {
		t.Errorf("request does not follow the config: %+v", a.Request.Viewport)
	}
}

func TestNew_HelpAndErrors(t *testing.T) {
	t.Parallel()
	_, err := New([]string{"deepzoom", "-h"}, io.Discard)
	if !IsHelpError(err) {
		t.Errorf("-h: err = %v", err)
	}
	_, err = New([]string{"deepzoom", "-width", "-1"}, io.Discard)
	if IsHelpError(err) || apperrors.ExitCodeFor(err) != apperrors.ExitErrorConfig {
		t.Errorf("bad width: err = %v", err)
	}
}

func TestNew_SettingsFileReplacesView(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := newTestApp(t, "-re", "-1.25", "-im", "0.125", "-z", "7", "-width", "33", "-height", "21", "-i", "777")
	path := filepath.Join(dir, "view.json")
	if err := settings.FromRequest(src.Request).Save(path); err != nil {
		t.Fatal(err)
	}

	a := newTestApp(t, "-settings", path, "-z", "1")
	v := a.Request.Viewport
	if v.Zoom != 7 || v.Width != 33 || a.Request.MaxIter != 777 || v.Center.Complex128() != complex(-1.25, 0.125) {
		t.Errorf("loaded view = %s cap %d", v.Key(), a.Request.MaxIter)
	}

	if _, err := New([]string{"deepzoom", "-settings", filepath.Join(dir, "missing.json")}, io.Discard); err == nil {
		t.Error("missing settings file accepted")
	}
}

func TestRun_HeadlessRender(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "frame.png")
	a := newTestApp(t, "-width", "24", "-height", "16", "-i", "200", "-o", out, "-q", "-save-settings", "-log-level", "error")

	var stdout bytes.Buffer
	if code := a.Run(context.Background(), &stdout); code != apperrors.ExitSuccess {
		t.Fatalf("exit code %d", code)
	}
	if strings.TrimSpace(stdout.String()) != out {
		t.Errorf("quiet output = %q, want the image path", stdout.String())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
		t.Errorf("image bounds %v", b)
	}
	if _, err := settings.LoadRequest(settings.SidecarPath(out)); err != nil {
		t.Errorf("settings sidecar: %v", err)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		open DeviceOpener
		want int
	}{
		{
			name: "device unavailable",
			open: func(name string, _ int) (compute.Device, error) {
				return nil, apperrors.DeviceUnavailableError{Backend: name, Reason: "test"}
			},
			want: apperrors.ExitErrorDevice,
		},
		{
			name: "precision exhausted",
			args: []string{"-z", "200000"},
			open: serialDevice,
			want: apperrors.ExitErrorPrecision,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args := append([]string{"deepzoom", "-q", "-width", "8", "-height", "8", "-log-level", "error",
				"-o", filepath.Join(t.TempDir(), "x.png")}, tt.args...)
			a, err := New(args, io.Discard, WithDeviceOpener(tt.open))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			var errOut bytes.Buffer
			a.ErrWriter = &errOut
			if code := a.Run(context.Background(), io.Discard); code != tt.want {
				t.Errorf("exit code %d, want %d (%s)", code, tt.want, errOut.String())
			}
		})
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, "-q", "-width", "8", "-height", "8", "-log-level", "error", "-o", filepath.Join(t.TempDir(), "x.png"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if code := a.Run(ctx, io.Discard); code != apperrors.ExitErrorCanceled {
		t.Errorf("exit code %d, want %d", code, apperrors.ExitErrorCanceled)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()
	for _, args := range [][]string{{"--version"}, {"-z", "3", "-version"}, {"-V"}} {
		if !HasVersionFlag(args) {
			t.Errorf("HasVersionFlag(%v) = false", args)
		}
	}
	if HasVersionFlag([]string{"-z", "3"}) {
		t.Error("HasVersionFlag without the flag")
	}
	var out bytes.Buffer
	PrintVersion(&out)
	if !strings.HasPrefix(out.String(), "deepzoom "+Version) || !strings.Contains(out.String(), "Go version") {
		t.Errorf("PrintVersion = %q", out.String())
	}
}
