package runner

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRendering(t *testing.T) {
	t.Run("Should render strings against run variables", func(t *testing.T) {
		rc := NewContext(WithVars(map[string]any{"inputs": map[string]any{"model": "gpt-4o"}}))
		out, err := rc.RenderString("{{ .inputs.model }}")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", out)
	})
	t.Run("Should convert rendered values to numbers", func(t *testing.T) {
		rc := NewContext(WithVars(map[string]any{"temp": "0.7"}))
		out, err := rc.RenderFloat("{{ .temp }}")
		require.NoError(t, err)
		assert.InDelta(t, 0.7, out, 1e-9)
	})
	t.Run("Should fail conversion of non-numeric values", func(t *testing.T) {
		rc := NewContext()
		_, err := rc.RenderFloat("not a number")
		assert.Error(t, err)
	})
	t.Run("Should coerce string slices", func(t *testing.T) {
		rc := NewContext()
		out, err := rc.RenderStringSlice([]any{"stop1", "stop2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"stop1", "stop2"}, out)
	})
	t.Run("Should coerce integer maps", func(t *testing.T) {
		rc := NewContext()
		out, err := rc.RenderIntMap(map[string]any{"50256": -100})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"50256": -100}, out)
	})
}

func TestContextMetrics(t *testing.T) {
	t.Run("Should accumulate counters in the recorder", func(t *testing.T) {
		rec := NewRecorder()
		rc := NewContext(WithMetrics(rec))
		rc.Metric("usage.total.tokens", 20)
		rc.Metric("usage.total.tokens", 10)
		assert.Equal(t, int64(30), rec.Get("usage.total.tokens"))
	})
	t.Run("Should tolerate a missing metrics sink", func(t *testing.T) {
		rc := NewContext(WithMetrics(nil))
		rc.Metric("usage.total.tokens", 1)
	})
}

func TestLocalStorage(t *testing.T) {
	t.Run("Should round-trip files through the store", func(t *testing.T) {
		store := NewLocalStorageFs(afero.NewMemMapFs(), "/storage")
		uri, err := store.Put("files/photo.png", []byte{0x89, 0x50})
		require.NoError(t, err)
		assert.Equal(t, "internal:///files/photo.png", uri)
		assert.True(t, store.IsInternal(uri))

		rd, err := store.GetFile(context.Background(), uri)
		require.NoError(t, err)
		defer rd.Close()
		data, err := io.ReadAll(rd)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 0x50}, data)
	})
	t.Run("Should persist local files under a generated name", func(t *testing.T) {
		store := NewLocalStorageFs(afero.NewMemMapFs(), "/storage")
		tmp, err := os.CreateTemp(t.TempDir(), "img-*.png")
		require.NoError(t, err)
		_, err = tmp.Write([]byte("image-bytes"))
		require.NoError(t, err)
		require.NoError(t, tmp.Close())

		uri, err := store.PutFile(context.Background(), tmp.Name())
		require.NoError(t, err)
		assert.True(t, store.IsInternal(uri))
		assert.Contains(t, uri, ".png")

		rd, err := store.GetFile(context.Background(), uri)
		require.NoError(t, err)
		defer rd.Close()
		data, err := io.ReadAll(rd)
		require.NoError(t, err)
		assert.Equal(t, []byte("image-bytes"), data)
	})
	t.Run("Should reject URIs with a foreign scheme", func(t *testing.T) {
		store := NewLocalStorageFs(afero.NewMemMapFs(), "/storage")
		assert.False(t, store.IsInternal("https://example.com/a.png"))
		_, err := store.GetFile(context.Background(), "https://example.com/a.png")
		assert.Error(t, err)
	})
}
