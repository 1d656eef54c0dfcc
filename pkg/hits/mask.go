package hits

import (
	"fmt"
	"io"
	"os"

	"betaatten/internal/models"
)

// MaskFileName is the conventional name of a dataset's pixel mask file
const MaskFileName = "masked_pixels.txt"

type pixel struct {
	i, j int
}

// Mask is a set of pixels whose hits are discarded before clustering,
// typically noisy or dead pixels of a particular sensor.
type Mask struct {
	pixels map[pixel]struct{}
}

// NewMask creates an empty mask
func NewMask() *Mask {
	return &Mask{pixels: make(map[pixel]struct{})}
}

// ReadMask parses "X\tY" rows from r
func ReadMask(r io.Reader, name string) (*Mask, error) {
	m := NewMask()
	err := scanRows(r, name, 2, func(vals []int) error {
		m.Add(vals[0], vals[1])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ReadMaskFile reads the mask at path. A missing file yields an empty mask.
func ReadMaskFile(path string) (*Mask, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewMask(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open mask file: %w", err)
	}
	defer f.Close()

	return ReadMask(f, path)
}

// Add masks the pixel (i, j)
func (m *Mask) Add(i, j int) {
	m.pixels[pixel{i, j}] = struct{}{}
}

// Contains reports whether (i, j) is masked
func (m *Mask) Contains(i, j int) bool {
	_, ok := m.pixels[pixel{i, j}]
	return ok
}

// Len returns the number of masked pixels
func (m *Mask) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pixels)
}

// Apply returns the hits that are not masked, preserving input order.
// A nil or empty mask returns hits unchanged.
func (m *Mask) Apply(in []models.Hit) []models.Hit {
	if m.Len() == 0 {
		return in
	}

	out := make([]models.Hit, 0, len(in))
	for _, h := range in {
		if m.Contains(h.I, h.J) {
			continue
		}
		out = append(out, h)
	}
	return out
}
