package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/embedding"
	"github.com/coursebot/backend/internal/infrastructure/storage"
)

func TestProvide_SQLite(t *testing.T) {
	dbCfg := &config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "index.db")}
	idx, cleanup, err := Provide(dbCfg, &config.IndexConfig{Backend: config.BackendSQLite, Collection: "file_collection"}, embedding.NewMockEmbedder(32))
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &storage.SQLiteIndex{}, idx)
	assert.NoError(t, Ping(context.Background(), idx))

	require.NoError(t, idx.Add(context.Background(), []string{"hello"}, []string{"1"}, []document.Metadata{{SourceName: "a.txt"}}))
	records, err := idx.GetByFilter(context.Background(), document.Filter{SourceName: "a.txt"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProvide_UnknownBackend(t *testing.T) {
	_, _, err := Provide(&config.DatabaseConfig{}, &config.IndexConfig{Backend: "chroma"}, embedding.NewMockEmbedder(32))
	assert.ErrorContains(t, err, "chroma")
}

type plainIndex struct{ document.Index }

func TestPing_NonPinger(t *testing.T) {
	assert.NoError(t, Ping(context.Background(), plainIndex{}))
}
