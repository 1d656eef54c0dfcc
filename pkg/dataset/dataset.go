// Package dataset locates the per-thickness measurement directories.
//
// A data root holds one directory per absorber thickness, named
// <value>_<unit> with '-' standing for the decimal point, so 0-23_mm is a
// 0.23 mm absorber. Frames live under <dataset>/ASCIIxyC/*.txt and an
// optional masked_pixels.txt sits next to them.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"betaatten/pkg/hits"
)

// FrameDirName is the frame sub-directory of every dataset
const FrameDirName = "ASCIIxyC"

// frameExt is the extension of hit files
const frameExt = ".txt"

var (
	// ErrInvalidName is returned for a directory not named <value>_<unit>.
	ErrInvalidName = errors.New("invalid dataset name")

	// ErrNoFrameDir is returned when a dataset has no frame directory.
	ErrNoFrameDir = errors.New("dataset has no frame directory")

	// ErrNoDatasets is returned when a data root holds no datasets.
	ErrNoDatasets = errors.New("no datasets found")

	// ErrDuplicateValue is returned when two datasets share a thickness.
	ErrDuplicateValue = errors.New("duplicate dataset value")

	// ErrMixedUnits is returned when datasets use different units.
	ErrMixedUnits = errors.New("datasets use different units")
)

// Dataset is one directory of frames recorded at a single thickness
type Dataset struct {
	// Name is the directory name, e.g. 0-23_mm
	Name string

	// Path is the directory path
	Path string

	// Value is the measured quantity, e.g. 0.23
	Value float64

	// Unit is the unit of Value, e.g. mm
	Unit string
}

// ParseName splits a directory name such as 0-23_mm into its value and unit
func ParseName(name string) (float64, string, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 2 || parts[0] == "" || parts[len(parts)-1] == "" {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(parts[0], "-", "."), 64)
	if err != nil || value < 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, "", fmt.Errorf("%w: %q: bad value %q", ErrInvalidName, name, parts[0])
	}

	return value, parts[len(parts)-1], nil
}

// New describes the dataset directory at path
func New(path string) (*Dataset, error) {
	name := filepath.Base(path)
	value, unit, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return &Dataset{Name: name, Path: path, Value: value, Unit: unit}, nil
}

// IsBaseline reports whether the dataset was recorded without absorber
func (d *Dataset) IsBaseline() bool {
	return d.Value == 0
}

// FrameDir returns the directory holding the dataset's hit files
func (d *Dataset) FrameDir() string {
	return filepath.Join(d.Path, FrameDirName)
}

// MaskPath returns the location of the optional pixel mask
func (d *Dataset) MaskPath() string {
	return filepath.Join(d.Path, hits.MaskFileName)
}

// FramePaths lists the dataset's hit files in name order
func (d *Dataset) FramePaths() ([]string, error) {
	entries, err := os.ReadDir(d.FrameDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoFrameDir, d.FrameDir())
		}
		return nil, fmt.Errorf("error listing frames of %s: %w", d.Name, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), frameExt) {
			continue
		}
		paths = append(paths, filepath.Join(d.FrameDir(), e.Name()))
	}
	// ReadDir already sorts by name
	return paths, nil
}

// Discover returns the datasets under root sorted by value. Hidden
// directories and plain files are ignored; any other directory must be a
// valid dataset name.
func Discover(root string) ([]*Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("error reading data directory: %w", err)
	}

	var datasets []*Dataset
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		d, err := New(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDatasets, root)
	}

	sort.SliceStable(datasets, func(i, j int) bool { return datasets[i].Value < datasets[j].Value })

	for k := 1; k < len(datasets); k++ {
		prev, cur := datasets[k-1], datasets[k]
		if cur.Unit != prev.Unit {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedUnits, prev.Name, cur.Name)
		}
		if cur.Value == prev.Value {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateValue, prev.Name, cur.Name)
		}
	}

	return datasets, nil
}
