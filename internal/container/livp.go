package container

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/qiyuan-z/livemotion/internal/fsutil"
)

// ExtractLIVP unpacks a .livp archive (a plain zip) into destDir and returns
// the paths of its image and video entries. The archive must contain exactly
// one of each.
func ExtractLIVP(livpPath, destDir string) (imagePath, movPath string, err error) {
	r, err := zip.OpenReader(livpPath)
	if err != nil {
		return "", "", fmt.Errorf("open livp %s: %w", livpPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Flatten entry paths; livp archives are flat in practice and
		// this keeps hostile entry names inside destDir.
		dest := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extractEntry(f, dest); err != nil {
			return "", "", err
		}
		switch {
		case fsutil.HasExt(f.Name, ".heic", ".jpg", ".jpeg"):
			imagePath = dest
		case fsutil.HasExt(f.Name, ".mov"):
			movPath = dest
		}
	}

	if imagePath == "" || movPath == "" {
		return "", "", fmt.Errorf("livp %s must contain an image (.heic/.jpg/.jpeg) and a .mov video", livpPath)
	}
	return imagePath, movPath, nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Sync()
}
