package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

type FileRecipeState struct {
	FilePath string
}

func NewFileRecipeState(filePath string) *FileRecipeState {
	return &FileRecipeState{FilePath: filePath}
}

func (r *FileRecipeState) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(r.FilePath)
}

// Save replaces the file in one step so readers never observe a partial corpus.
func (r *FileRecipeState) Save(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(r.FilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}
	if err := atomic.WriteFile(r.FilePath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write corpus file %s: %w", r.FilePath, err)
	}
	return nil
}
