// Package hits reads detector frames stored as tab-separated pixel lists
// ("I\tJ\tC", one activated pixel per line) and applies pixel masks.
package hits

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"betaatten/internal/models"
)

// ErrNegativeCount is wrapped by ParseError when a row's count is below zero.
var ErrNegativeCount = errors.New("count must be non-negative")

// ErrFieldCount is wrapped by ParseError when a row does not have the
// expected number of tab-separated fields.
var ErrFieldCount = errors.New("wrong number of fields")

// ParseError reports the first malformed row of an input file
type ParseError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: malformed row %q: %v", e.Path, e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Read parses hit rows from r. The name is only used in error messages.
// Blank lines are skipped; any other malformed row aborts the read.
func Read(r io.Reader, name string) ([]models.Hit, error) {
	hits := make([]models.Hit, 0)
	err := scanRows(r, name, 3, func(vals []int) error {
		if vals[2] < 0 {
			return ErrNegativeCount
		}
		hits = append(hits, models.NewHit(vals[0], vals[1], vals[2]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// ReadFile parses the hit file at path
func ReadFile(path string) ([]models.Hit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hit file: %w", err)
	}
	defer f.Close()

	return Read(f, path)
}

// ReadFrame parses the hit file at path into a frame whose ID is the
// file's base name without extension.
func ReadFrame(path string) (*models.Frame, error) {
	h, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return models.NewFrame(FrameID(path), h), nil
}

// FrameID derives a frame identifier from a hit file path
func FrameID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// scanRows splits each non-blank line of r into exactly n integer fields
// and hands them to fn. Errors are reported as *ParseError.
func scanRows(r io.Reader, name string, n int, fn func(vals []int) error) error {
	scanner := bufio.NewScanner(r)
	vals := make([]int, n)
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) != n {
			return &ParseError{Path: name, Line: line, Text: text,
				Err: fmt.Errorf("%w: expected %d, got %d", ErrFieldCount, n, len(fields))}
		}

		for k, field := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return &ParseError{Path: name, Line: line, Text: text, Err: err}
			}
			vals[k] = v
		}

		if err := fn(vals); err != nil {
			return &ParseError{Path: name, Line: line, Text: text, Err: err}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}
