package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/flowdeck/pkg/adapters/file"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunDraftStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_IgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Draft{Key: "workflow-1"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-workflow-1-123.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"workflow-1"}, keys)
}

func TestFileStore_MissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStore_RejectsUnsafeKeys(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		assert.Error(t, store.Save(ctx, &domain.Draft{Key: key}), key)
		_, err := store.Load(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestFileStore_CorruptDraft(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow-9.json"), []byte("{broken"), 0644))

	_, err := file.New(dir).Load(context.Background(), "workflow-9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestNew_DefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join(".flowdeck", "drafts"), file.New("").BasePath)
}
