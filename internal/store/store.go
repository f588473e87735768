package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// FileStore writes fetched feedback audio into a downloads directory,
// one timestamped file per save.
type FileStore struct {
	dir string
	log *zap.Logger
}

func NewFileStore(dir string, log *zap.Logger) *FileStore {
	return &FileStore{dir: dir, log: log}
}

func (s *FileStore) Save(audio []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create download directory: %w", err)
	}

	name := fmt.Sprintf("feedback-%s.mp3", time.Now().Format("20060102-150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("could not write feedback audio: %w", err)
	}

	s.log.Info("feedback audio saved", zap.String("path", path), zap.Int("bytes", len(audio)))
	return path, nil
}
