package storage

import (
	"context"
	"errors"
)

// RecipeState is the read side of the JSONL recipe corpus.
type RecipeState interface {
	Load(ctx context.Context) ([]byte, error)
}

// RecipeSink is the write side of the corpus, used by the scraper.
type RecipeSink interface {
	Save(ctx context.Context, data []byte) error
}

// TestRecipeState is a simple in-memory implementation for testing
type TestRecipeState struct {
	data []byte
	err  error
}

func NewTestRecipeState(data []byte) *TestRecipeState {
	return &TestRecipeState{data: data}
}

func NewTestRecipeStateWithError() *TestRecipeState {
	return &TestRecipeState{err: errors.New("not found")}
}

func (t *TestRecipeState) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}

func (t *TestRecipeState) Save(ctx context.Context, data []byte) error {
	if t.err != nil {
		return t.err
	}
	t.data = append([]byte(nil), data...)
	return nil
}

// Data returns whatever was last saved or loaded.
func (t *TestRecipeState) Data() []byte { return t.data }
