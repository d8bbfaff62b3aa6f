package content

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveWritesAtDeterministicPath(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := w.Save(context.Background(), "http://a.example/1", "hello world")
	require.NoError(t, err)
	require.Equal(t, w.Path("http://a.example/1"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(body))
}

func TestPathIsStableAcrossCalls(t *testing.T) {
	root := t.TempDir()
	require.Equal(t, Path(root, "http://a.example/1"), Path(root, "http://a.example/1"))
	require.NotEqual(t, Path(root, "http://a.example/1"), Path(root, "http://a.example/2"))
}
