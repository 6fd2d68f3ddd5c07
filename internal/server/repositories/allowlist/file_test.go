package allowlist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_Contains(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	ctx := context.Background()

	ok, err := repo.Contains(ctx, Testers, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok, "missing file is an empty list")

	path := filepath.Join(dir, "testers.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a@x.com"]`), 0o600))

	ok, err = repo.Contains(ctx, Testers, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Contains(ctx, Testers, "A@x.com")
	require.NoError(t, err)
	assert.False(t, ok, "emails are case sensitive")

	// re-read on every call
	require.NoError(t, os.WriteFile(path, []byte(`["b@x.com"]`), 0o600))
	ok, err = repo.Contains(ctx, Testers, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta-access.json"), []byte(`{`), 0o600))

	_, err := NewFileRepository(dir).Contains(context.Background(), BetaAccess, "a@x.com")
	assert.Error(t, err)
}
