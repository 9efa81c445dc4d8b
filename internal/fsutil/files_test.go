package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHasExt(t *testing.T) {
	cases := []struct {
		path string
		exts []string
		want bool
	}{
		{"photo.jpg", []string{".jpg", ".jpeg"}, true},
		{"photo.JPG", []string{".jpg"}, true},
		{"clip.MOV", []string{".mov"}, true},
		{"photo.heic", []string{".jpg"}, false},
		{"noext", []string{".jpg"}, false},
		{"dir/photo.Jpeg", []string{".jpeg"}, true},
	}
	for _, tc := range cases {
		if got := HasExt(tc.path, tc.exts...); got != tc.want {
			t.Errorf("HasExt(%q, %v) = %v, want %v", tc.path, tc.exts, got, tc.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/in/IMG_0001.heic", "IMG_0001"},
		{"IMG_0001.jpg.jpeg", "IMG_0001"},
		{"IMG_0001.JPG.jpeg", "IMG_0001"},
		{"photo.livp", "photo"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := BaseName(tc.path); got != tc.want {
			t.Errorf("BaseName(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestMD5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	// md5("hello"), chunk size smaller than the content to force multiple reads
	const want = "5d41402abc4b2a76b9719d911017c592"
	got, err := MD5File(path, 2)
	if err != nil {
		t.Fatalf("MD5File: %v", err)
	}
	if got != want {
		t.Errorf("MD5File = %q, want %q", got, want)
	}
	if def, _ := MD5File(path, 0); def != want {
		t.Errorf("default chunk size digest = %q", def)
	}
}

func TestCopyFileCreatesParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "nested", "deeper", "dst")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Errorf("dst content = %q, err=%v", data, err)
	}
}

func TestWaitStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("settled"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WaitStable(path, time.Millisecond); err != nil {
		t.Fatalf("WaitStable: %v", err)
	}
	if err := WaitStable(filepath.Join(t.TempDir(), "missing"), time.Millisecond); err == nil {
		t.Fatal("expected error for missing file")
	}
}
