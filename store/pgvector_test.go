package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPgVectorStoreInvalidDSN(t *testing.T) {
	s, err := NewPgVectorStore(context.Background(), PgVectorConfig{
		ConnString: "not a dsn",
	})
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestPgVectorStoreArgumentValidation(t *testing.T) {
	// These paths return before the pool is used, so no server is needed.
	s := &PgVectorStore{cfg: PgVectorConfig{TableName: "documents"}}

	_, err := s.Search(context.Background(), []float32{0.1}, 0)
	assert.Error(t, err)

	_, err = s.KeywordSearch(context.Background(), []string{"x"}, -1)
	assert.Error(t, err)

	results, err := s.KeywordSearch(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
