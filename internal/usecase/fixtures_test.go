package usecase

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pestmatch/internal/adapter/embedding"
	"pestmatch/internal/adapter/fs"
	"pestmatch/internal/adapter/imaging"
	"pestmatch/internal/adapter/memstore"
	"pestmatch/internal/adapter/retriever"
	"pestmatch/internal/port"
)

var (
	red  = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	blue = color.RGBA{R: 20, G: 40, B: 220, A: 255}
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// juteDataset lays out root/Besouro/b.png (blue) and
// root/Lagarta-da-juta/a.png (red) plus a README.txt that must be ignored.
func juteDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "Lagarta-da-juta", "a.png"), red)
	writePNG(t, filepath.Join(root, "Besouro", "b.png"), blue)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Besouro", "README.txt"), []byte("notes"), 0644))
	return root
}

// larvaeDataset holds two Lagarta-da-juta images and one Besouro image.
func larvaeDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "Lagarta-da-juta", "a.png"), red)
	writePNG(t, filepath.Join(root, "Lagarta-da-juta", "c.png"), color.RGBA{R: 180, G: 60, B: 40, A: 255})
	writePNG(t, filepath.Join(root, "Besouro", "b.png"), blue)
	return root
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0644))
}

type harness struct {
	loader  *embedding.Loader
	index   *IndexUseCase
	compare *CompareUseCase
	history *memstore.HistoryStore
}

func newHarness(t *testing.T, root string, load embedding.LoadFunc) *harness {
	t.Helper()
	if load == nil {
		load = func(context.Context) (port.Model, error) {
			return embedding.NewMockModel(12), nil
		}
	}
	loader := embedding.NewLoader(load, nil)
	extractor := embedding.NewExtractor(imaging.NewPreprocessor(32), loader)
	index := NewIndexUseCase(fs.NewDatasetWalker("juta", nil), extractor, root, 2, nil)
	history := memstore.NewHistoryStore()
	compare := NewCompareUseCase(index, extractor, retriever.NewNearestMatcher(), loader, history, nil)
	return &harness{loader: loader, index: index, compare: compare, history: history}
}

func failingLoad(context.Context) (port.Model, error) {
	return nil, errors.New("artifact not found")
}
