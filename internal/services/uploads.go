package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type Upload struct {
	Path   string
	Size   int64
	SHA256 string
}

// SaveUpload copies body into dir under a fresh name that keeps ext. Bodies
// larger than maxBytes or empty ones are rejected and nothing is left on
// disk.
func SaveUpload(dir, ext string, body io.Reader, maxBytes int64) (Upload, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Upload{}, err
	}
	target := filepath.Join(dir, uuid.NewString()+ext)
	file, err := os.Create(target)
	if err != nil {
		return Upload{}, err
	}
	hasher := sha256.New()
	limited := &io.LimitedReader{R: body, N: maxBytes + 1}
	size, err := io.Copy(io.MultiWriter(file, hasher), limited)
	_ = file.Close()
	switch {
	case err != nil:
		_ = os.Remove(target)
		return Upload{}, err
	case size == 0:
		_ = os.Remove(target)
		return Upload{}, ErrBadRequest("El archivo está vacío")
	case size > maxBytes:
		_ = os.Remove(target)
		return Upload{}, ErrBadRequest("El archivo supera el tamaño máximo permitido")
	}
	return Upload{Path: target, Size: size, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

func RemoveUpload(u Upload) {
	if u.Path != "" {
		_ = os.Remove(u.Path)
	}
}
