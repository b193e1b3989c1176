package blobstore

import (
	"os"
	"path/filepath"
)

func readLocal(localPath string) ([]byte, error) {
	return os.ReadFile(localPath)
}

func writeLocal(localPath string, data []byte, makedirs bool) error {
	if makedirs {
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(localPath, data, 0o644)
}
