// Package mediatag wraps exiftool as the metadata read/write capability.
// Values stay loosely typed strings at this layer; callers parse them with
// the typed helpers in value.go.
package mediatag

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/qiyuan-z/livemotion/internal/execx"
	"github.com/rwcarlsen/goexif/exif"
)

type Store struct {
	run execx.Runner

	// ConfigPath points at an exiftool config defining vendor XMP tags
	// (GCamera, Container). Empty means exiftool's builtin tables.
	ConfigPath string
}

func NewStore(r execx.Runner) *Store {
	return &Store{run: r}
}

func (s *Store) base() []string {
	if s.ConfigPath != "" {
		return []string{"-config", s.ConfigPath}
	}
	return nil
}

// Read probes the given tags (exiftool selector syntax, e.g.
// "-XMP-GCamera:MicroVideoOffset") and returns a map keyed by the short tag
// name exiftool prints with -s. Numeric mode (-n) keeps values machine
// parseable. A tag absent from the file is absent from the map.
func (s *Store) Read(ctx context.Context, path string, tags ...string) (map[string]string, error) {
	args := append(s.base(), "-s", "-n")
	args = append(args, tags...)
	args = append(args, path)
	out, err := s.run.Run(ctx, "exiftool", args...)
	if err != nil {
		return nil, fmt.Errorf("read tags from %s: %w", path, err)
	}
	return parseShortOutput(out), nil
}

// ReadOne probes a single tag and reports whether it was present.
func (s *Store) ReadOne(ctx context.Context, path, tag string) (string, bool) {
	vals, err := s.Read(ctx, path, tag)
	if err != nil || len(vals) == 0 {
		return "", false
	}
	for _, v := range vals {
		return v, true
	}
	return "", false
}

// Write applies tag assignments in place. Assignments use exiftool syntax
// ("-Tag=value", "-Tag=" to delete).
func (s *Store) Write(ctx context.Context, path string, assignments ...string) error {
	args := append(s.base(), "-overwrite_original")
	args = append(args, assignments...)
	args = append(args, path)
	if _, err := s.run.Run(ctx, "exiftool", args...); err != nil {
		return fmt.Errorf("write tags to %s: %w", path, err)
	}
	return nil
}

// CopyAllFrom copies every tag group from src onto dst, including unsafe
// tags and the ICC profile so color round-trips, then applies extra
// assignments (deletions, overrides) in the same invocation.
func (s *Store) CopyAllFrom(ctx context.Context, dst, src string, extra ...string) error {
	args := append(s.base(),
		"-overwrite_original",
		"-TagsFromFile", src,
		"-all:all",
		"-unsafe",
		"-icc_profile",
	)
	args = append(args, extra...)
	args = append(args, dst)
	if _, err := s.run.Run(ctx, "exiftool", args...); err != nil {
		return fmt.Errorf("copy tags %s -> %s: %w", src, dst, err)
	}
	return nil
}

// InjectBinary writes a raw binary blob file into a tag ("-Tag<=file").
func (s *Store) InjectBinary(ctx context.Context, path, tag, blobPath string) error {
	args := append(s.base(),
		"-overwrite_original",
		fmt.Sprintf("-%s<=%s", tag, blobPath),
		path,
	)
	if _, err := s.run.Run(ctx, "exiftool", args...); err != nil {
		return fmt.Errorf("inject %s into %s: %w", tag, path, err)
	}
	return nil
}

// ExtractBinary reads a tag's raw binary payload ("-b") to a file.
func (s *Store) ExtractBinary(ctx context.Context, path, tag, outPath string) error {
	args := append(s.base(), "-b", "-"+tag, path)
	out, err := s.run.Run(ctx, "exiftool", args...)
	if err != nil {
		return fmt.Errorf("extract %s from %s: %w", tag, path, err)
	}
	if len(out) == 0 {
		return fmt.Errorf("extract %s from %s: empty payload", tag, path)
	}
	return os.WriteFile(outPath, out, 0o644)
}

// DateTimeOriginal reads the capture timestamp with goexif, bypassing
// exiftool. Used to verify the tag survived a conversion even when exiftool
// output is unusable.
func DateTimeOriginal(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return "", false
	}
	tm, err := x.DateTime()
	if err != nil {
		return "", false
	}
	return tm.Format("2006:01:02 15:04:05"), true
}

func parseShortOutput(out []byte) map[string]string {
	vals := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if name == "" || value == "" {
			continue
		}
		vals[name] = value
	}
	return vals
}
