package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		unit  string
	}{
		{"0-23_mm", 0.23, "mm"},
		{"0-0_mm", 0, "mm"},
		{"0_mm", 0, "mm"},
		{"1-5_mm", 1.5, "mm"},
		{"12_um", 12, "um"},
		{"0-4_al_mm", 0.4, "mm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, unit, err := ParseName(tt.name)
			require.NoError(t, err)
			assert.InDelta(t, tt.value, value, 1e-12)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestParseNameInvalid(t *testing.T) {
	for _, name := range []string{"", "results", "_mm", "0-23_", "a-b_mm", "1-2-3_mm", "inf_mm", "nan_mm"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseName(name)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n, FrameDirName), 0o755))
	}
}

func TestDiscoverSortsByValue(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "1-0_mm", "0-0_mm", "0-23_mm", ".cache")
	require.NoError(t, os.WriteFile(filepath.Join(root, "beta_results.json"), []byte("{}"), 0o644))

	datasets, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, datasets, 3)

	assert.Equal(t, "0-0_mm", datasets[0].Name)
	assert.True(t, datasets[0].IsBaseline())
	assert.Equal(t, "0-23_mm", datasets[1].Name)
	assert.Equal(t, "1-0_mm", datasets[2].Name)
	assert.Equal(t, filepath.Join(root, "0-23_mm", "masked_pixels.txt"), datasets[1].MaskPath())
}

func TestDiscoverErrors(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	_, err = Discover(t.TempDir())
	assert.ErrorIs(t, err, ErrNoDatasets)

	root := t.TempDir()
	mkdirs(t, root, "0-5_mm", "0-50_mm")
	_, err = Discover(root)
	assert.ErrorIs(t, err, ErrDuplicateValue)

	root = t.TempDir()
	mkdirs(t, root, "0-5_mm", "1_cm")
	_, err = Discover(root)
	assert.ErrorIs(t, err, ErrMixedUnits)

	root = t.TempDir()
	mkdirs(t, root, "0-5_mm", "notes")
	_, err = Discover(root)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestFramePaths(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "0-1_mm")
	d, err := New(filepath.Join(root, "0-1_mm"))
	require.NoError(t, err)

	for _, n := range []string{"frame_002.txt", "frame_001.txt", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(d.FrameDir(), n), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(d.FrameDir(), "sub.txt"), 0o755))

	paths, err := d.FramePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(d.FrameDir(), "frame_001.txt"),
		filepath.Join(d.FrameDir(), "frame_002.txt"),
	}, paths)
}

func TestFramePathsMissingDir(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "0-1_mm"))
	require.NoError(t, err)

	_, err = d.FramePaths()
	assert.ErrorIs(t, err, ErrNoFrameDir)
}
