package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/dbf"
	"github.com/dyuri/shpimport/internal/drawing"
	"github.com/dyuri/shpimport/internal/style"
)

// ErrAttributeCountMismatch reports an attribute table whose row count
// differs from the geometry record count
var ErrAttributeCountMismatch = errors.New("attribute count mismatch")

// Status is the terminal state of an import
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// TableLevel is the Record value of warnings that concern the whole file
const TableLevel = -1

// Warning is a non-fatal finding
type Warning struct {
	Record int // Zero-based record ordinal, or TableLevel
	Err    error
}

func (w Warning) String() string {
	if w.Record == TableLevel {
		return w.Err.Error()
	}
	return fmt.Sprintf("record %d: %v", w.Record, w.Err)
}

// Kind returns a short label for the warning's error class
func (w Warning) Kind() string {
	switch {
	case errors.Is(w.Err, ErrAttributeCountMismatch):
		return "attribute_count_mismatch"
	case errors.Is(w.Err, binary.ErrShapeTypeMismatch):
		return "shape_type_mismatch"
	case errors.Is(w.Err, binary.ErrCorruptGeometry):
		return "corrupt_geometry"
	case errors.Is(w.Err, binary.ErrTruncatedInput):
		return "truncated_input"
	case errors.Is(w.Err, binary.ErrDegeneratePart):
		return "degenerate_part"
	case errors.Is(w.Err, style.ErrMissingField):
		return "missing_field"
	case errors.Is(w.Err, dbf.ErrBadTable):
		return "bad_table"
	}
	return "other"
}

// Result summarizes one import
type Result struct {
	File     string
	Records  int // Records read, including skipped ones
	Entities int // Entities inserted
	Skipped  int // Records that produced no entities
	Warned   int // Records with at least one warning
	Warnings []Warning
	ByKind   map[drawing.Kind]int
	Status   Status
	Elapsed  time.Duration
}

func newResult(file string) *Result {
	return &Result{File: file, ByKind: make(map[drawing.Kind]int)}
}

// HasWarning reports whether any warning matches target
func (r *Result) HasWarning(target error) bool {
	for _, w := range r.Warnings {
		if errors.Is(w.Err, target) {
			return true
		}
	}
	return false
}

// CountWarnings returns the number of warnings matching target
func (r *Result) CountWarnings(target error) int {
	n := 0
	for _, w := range r.Warnings {
		if errors.Is(w.Err, target) {
			n++
		}
	}
	return n
}
