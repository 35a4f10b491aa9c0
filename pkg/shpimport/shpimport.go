// Package shpimport imports ESRI shapefiles into a drawing.
//
// This package can be used as a library to open a shapefile set, import
// its records as drawing entities and write the drawing out.
//
// Example usage:
//
//	doc := shpimport.NewDrawing()
//	res, err := shpimport.ImportFile(ctx, "parcels.shp", "", doc, shpimport.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Entities, "entities")
//
//	out, _ := os.Create("parcels.dxf")
//	defer out.Close()
//	shpimport.WriteDXF(out, doc)
package shpimport

import (
	"context"
	"io"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/dbf"
	"github.com/dyuri/shpimport/internal/drawing"
	"github.com/dyuri/shpimport/internal/importer"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/dyuri/shpimport/internal/source"
	"github.com/dyuri/shpimport/internal/style"
)

type (
	// Options configure an import
	Options = importer.Options
	// Result summarizes a finished, failed or canceled import
	Result = importer.Result
	// Warning is a non-fatal problem tied to a record
	Warning = importer.Warning
	// Status is the final state of an import
	Status = importer.Status
	// Set is an opened geometry/index/attribute file triple
	Set = source.Set
	// Document is a destination the importer can write into
	Document = drawing.Document
	// Drawing is the in-memory Document
	Drawing = drawing.Drawing
	// Entity is one drawing primitive
	Entity = drawing.Entity
	// Attributes are the display defaults of a drawing
	Attributes = drawing.Attributes
)

const (
	StatusSucceeded = importer.StatusSucceeded
	StatusFailed    = importer.StatusFailed
	StatusCanceled  = importer.StatusCanceled
)

// Errors reported by Open and Import, matched with errors.Is
var (
	ErrFileNotFound           = source.ErrFileNotFound
	ErrBadExtension           = source.ErrBadExtension
	ErrBadSignature           = binary.ErrBadSignature
	ErrUnsupportedShapeType   = binary.ErrUnsupportedShapeType
	ErrTruncatedInput         = binary.ErrTruncatedInput
	ErrCorruptGeometry        = binary.ErrCorruptGeometry
	ErrShapeTypeMismatch      = binary.ErrShapeTypeMismatch
	ErrDegeneratePart         = binary.ErrDegeneratePart
	ErrBadTable               = dbf.ErrBadTable
	ErrMissingField           = style.ErrMissingField
	ErrAttributeCountMismatch = importer.ErrAttributeCountMismatch
)

// NewDrawing creates an empty drawing with white, continuous, zero-width
// defaults
func NewDrawing() *Drawing {
	return drawing.New(Attributes{Color: model.Color{R: 255, G: 255, B: 255}, LineType: "CONTINUOUS"})
}

// Open opens a shapefile set from a .shp path, a directory or an archive.
// member selects the .shp inside a directory or archive; empty picks the
// first one.
//
// The caller must Close the returned set.
func Open(path, member string) (*Set, error) {
	return source.Open(path, member)
}

// OpenImage opens a shapefile set stored in a disk image
func OpenImage(image, member string) (*Set, error) {
	return source.OpenImage(image, member)
}

// Import reads the set into doc. See ImportFile.
func Import(ctx context.Context, set *Set, doc Document, opts Options) (*Result, error) {
	return importer.Import(ctx, set, doc, opts)
}

// ImportFile opens path and imports it into doc.
//
// Record-level problems are collected as warnings in the result. Errors in
// the file header, the attribute table or the destination abort the import;
// the partial result is returned along with the error.
//
// Example:
//
//	res, err := ImportFile(ctx, "data.zip", "roads.shp", doc, opts)
func ImportFile(ctx context.Context, path, member string, doc Document, opts Options) (*Result, error) {
	set, err := source.Open(path, member)
	if err != nil {
		return nil, err
	}
	defer set.Close()
	return importer.Import(ctx, set, doc, opts)
}

// WriteDXF writes the drawing as an ASCII DXF file
func WriteDXF(w io.Writer, d *Drawing) error {
	return drawing.WriteDXF(w, d)
}

// WriteGeoJSON writes the drawing as a GeoJSON feature collection
func WriteGeoJSON(w io.Writer, d *Drawing) error {
	return drawing.WriteGeoJSON(w, d)
}
