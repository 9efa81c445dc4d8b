package fsutil

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// MD5File hashes a file in chunks so large composites do not load whole.
func MD5File(path string, chunkSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if chunkSize <= 0 {
		chunkSize = 4 * 1024 * 1024
	}
	h := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
