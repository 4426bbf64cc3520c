package infra_identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity")

	first, err := LoadOrCreate(path)
	require.NoError(t, err)
	second, err := LoadOrCreate(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	_, err = uuid.Parse(first)
	assert.NoError(t, err)
}

func TestLoadOrCreateReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	require.NoError(t, os.WriteFile(path, []byte("not-an-id"), 0o600))

	id, err := LoadOrCreate(path)

	require.NoError(t, err)
	assert.NotEqual(t, "not-an-id", id)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, id+"\n", string(raw))
}
