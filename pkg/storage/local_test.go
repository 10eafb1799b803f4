package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewLocalStorage(root, logger.NewTestLogger())
	require.NoError(t, err)
	return store, root
}

func TestStoreAndRead(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()

	fileID, err := store.Store(ctx, bytes.NewReader([]byte("ofd bytes")), "电子发票.OFD")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fileID, ".ofd"))

	data, err := store.Read(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, "ofd bytes", string(data))
}

func TestResolve(t *testing.T) {
	store, root := newLocal(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ofd"), []byte("x"), 0o644))

	ref, err := store.Resolve(ctx, "a.ofd")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "a.ofd"), ref.Path)
	assert.Equal(t, int64(1), ref.Size)
	assert.Greater(t, ref.ModTimeUnix, int64(0))

	info, err := os.Stat(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().UnixMilli(), ref.ModTimeUnix)
}

func TestResolveMissing(t *testing.T) {
	store, _ := newLocal(t)

	_, err := store.Resolve(context.Background(), "missing.ofd")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveRejectsDirectory(t *testing.T) {
	store, root := newLocal(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	_, err := store.Resolve(context.Background(), "sub")
	assert.ErrorContains(t, err, "not a regular file")
}

func TestPathTraversalConfined(t *testing.T) {
	store, root := newLocal(t)
	ctx := context.Background()

	// root 之外放一个文件，穿越片段折叠后不可达
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	_, err := store.Read(ctx, "../secret.txt")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("inside"), 0o644))
	data, err := store.Read(ctx, "../secret.txt")
	require.NoError(t, err)
	assert.Equal(t, "inside", string(data))
}
