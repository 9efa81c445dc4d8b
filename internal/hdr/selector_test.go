package hdr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qiyuan-z/livemotion/internal/detect"
	"github.com/qiyuan-z/livemotion/internal/mediatag"
)

// toolRunner records every invocation and can fail selected tools or run a
// hook per call, which stands in for tools that create files on disk.
type toolRunner struct {
	failTools map[string]bool
	onRun     func(name string, args []string)
	calls     []call
}

type call struct {
	name string
	args []string
}

func (f *toolRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.onRun != nil {
		f.onRun(name, args)
	}
	if f.failTools[name] {
		return nil, errors.New(name + " failed")
	}
	return nil, nil
}

func (f *toolRunner) toolNames() []string {
	names := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		names = append(names, c.name)
	}
	return names
}

func (f *toolRunner) exiftoolArgs() string {
	var all []string
	for _, c := range f.calls {
		if c.name == "exiftool" {
			all = append(all, c.args...)
		}
	}
	return strings.Join(all, " ")
}

func newSelector(fake *toolRunner, ultraHDR bool) *Selector {
	caps := Capabilities{Magick: true, Exiftool: true, UltraHDR: ultraHDR}
	return NewSelector(caps, fake, mediatag.NewStore(fake), 95)
}

func TestToJPEGStandardPathResetsOrientation(t *testing.T) {
	fake := &toolRunner{}
	s := newSelector(fake, false)

	if err := s.ToJPEG(context.Background(), "in.heic", "out.jpg", t.TempDir(), detect.SDR); err != nil {
		t.Fatalf("ToJPEG: %v", err)
	}

	joined := strings.Join(fake.calls[0].args, " ")
	if fake.calls[0].name != "magick" || !strings.Contains(joined, "-auto-orient") {
		t.Errorf("first call should be magick -auto-orient, got %s %q", fake.calls[0].name, joined)
	}
	meta := fake.exiftoolArgs()
	if !strings.Contains(meta, "-Orientation#=1") || !strings.Contains(meta, "-Orientation=") {
		t.Errorf("metadata copy must reset orientation to normal: %q", meta)
	}
}

func TestToJPEGSkipsEnhancedWithoutCapability(t *testing.T) {
	fake := &toolRunner{}
	s := newSelector(fake, false)

	if err := s.ToJPEG(context.Background(), "in.heic", "out.jpg", t.TempDir(), detect.HDRSource); err != nil {
		t.Fatalf("ToJPEG: %v", err)
	}
	for _, name := range fake.toolNames() {
		if name == "heif-convert" || name == "ultrahdr_app" {
			t.Fatalf("enhanced tooling invoked without capability: %v", fake.toolNames())
		}
	}
}

func TestToJPEGEnhancedFailureFallsBack(t *testing.T) {
	fake := &toolRunner{failTools: map[string]bool{"heif-convert": true}}
	s := newSelector(fake, true)

	if err := s.ToJPEG(context.Background(), "in.heic", "out.jpg", t.TempDir(), detect.HDRSource); err != nil {
		t.Fatalf("ToJPEG: %v", err)
	}

	names := fake.toolNames()
	if names[0] != "heif-convert" {
		t.Fatalf("enhanced path not attempted first: %v", names)
	}
	sawStandard := false
	for _, c := range fake.calls[1:] {
		if c.name == "magick" && strings.Contains(strings.Join(c.args, " "), "-sampling-factor 4:2:0") {
			sawStandard = true
		}
	}
	if !sawStandard {
		t.Errorf("standard encode did not run after enhanced failure: %v", names)
	}
	if !strings.Contains(fake.exiftoolArgs(), "-Orientation#=1") {
		t.Errorf("fallback must still reset orientation: %q", fake.exiftoolArgs())
	}
}

func TestToJPEGEnhancedPath(t *testing.T) {
	workDir := t.TempDir()
	fake := &toolRunner{}
	fake.onRun = func(name string, args []string) {
		if name == "heif-convert" {
			// heif-convert drops the aux image next to the base output.
			aux := filepath.Join(workDir, "base-urn:com:apple:photo:2020:aux:hdrgainmap.png")
			if err := os.WriteFile(aux, []byte("png"), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(workDir, "base.png"), []byte("png"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	s := newSelector(fake, true)

	if err := s.ToJPEG(context.Background(), "in.heic", "out.jpg", workDir, detect.UltraHDRSource); err != nil {
		t.Fatalf("ToJPEG: %v", err)
	}

	var sawUltra bool
	for _, c := range fake.calls {
		if c.name == "ultrahdr_app" {
			sawUltra = true
			joined := strings.Join(c.args, " ")
			if !strings.Contains(joined, "-m 0") || !strings.Contains(joined, "-z out.jpg") {
				t.Errorf("ultrahdr_app args = %q", joined)
			}
		}
	}
	if !sawUltra {
		t.Fatalf("ultrahdr_app never invoked: %v", fake.toolNames())
	}
}

func TestToHEICStripsMotionTags(t *testing.T) {
	fake := &toolRunner{}
	s := newSelector(fake, false)

	if err := s.ToHEIC(context.Background(), "static.jpg", "out.heic", t.TempDir(), "source.jpg", detect.SDR); err != nil {
		t.Fatalf("ToHEIC: %v", err)
	}

	meta := fake.exiftoolArgs()
	for _, want := range []string{
		"-TagsFromFile source.jpg",
		"-XMP-GCamera:MicroVideoOffset=",
		"-XMP-GCamera:MotionPhoto=",
		"-Orientation#=1",
	} {
		if !strings.Contains(meta, want) {
			t.Errorf("metadata copy missing %q: %q", want, meta)
		}
	}
}

func TestFindGainMapAux(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"base.png", "base-aux.png", "base-hdrgainmap.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := findGainMapAux(dir)
	if err != nil {
		t.Fatalf("findGainMapAux: %v", err)
	}
	if filepath.Base(got) != "base-hdrgainmap.png" {
		t.Errorf("got %s, want the hdrgainmap-named aux", got)
	}
}

func TestFindGainMapAuxNone(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := findGainMapAux(dir); err == nil {
		t.Fatal("expected error when no aux image present")
	}
}
