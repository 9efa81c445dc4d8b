package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HasExt reports whether path has one of the given extensions,
// case-insensitively. Extensions include the leading dot.
func HasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// BaseName returns the file name without directory or extension. A trailing
// ".jpg" left over from double extensions like "IMG_0001.jpg.jpeg" is
// stripped as well, matching how outputs are named.
func BaseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(strings.ToLower(base), ".jpg") {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// FileSize returns the size of the file at path.
func FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// CopyFile copies src to dst, creating dst's directory if needed.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// WaitStable waits until two consecutive size checks separated by delay
// agree, so a file still being written is not picked up half-copied.
func WaitStable(path string, delay time.Duration) error {
	var lastSize int64 = -1
	for i := 0; i < 5; i++ {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		if fi.Size() == lastSize {
			return nil
		}
		lastSize = fi.Size()
		time.Sleep(delay)
	}
	return nil
}
