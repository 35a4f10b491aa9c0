// Package drawing is the destination document the importer writes into:
// named layers holding point, line, polyline and text entities.
package drawing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dyuri/shpimport/internal/model"
	"github.com/google/uuid"
)

// Kind is the entity type
type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindPolyline
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolyline:
		return "polyline"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// RingRole marks closed polylines that came from polygon rings
type RingRole int

const (
	RingNone RingRole = iota
	RingOuter
	RingInner
)

func (r RingRole) String() string {
	switch r {
	case RingOuter:
		return "outer"
	case RingInner:
		return "inner"
	}
	return "none"
}

// Vertex is a 3D drawing coordinate
type Vertex struct {
	X, Y, Z float64
}

// Attributes are the display properties carried by every entity
type Attributes struct {
	Color    model.Color
	LineType string
	Width    float64 // Line width in millimetres
}

// Entity is one drawing primitive. Points and texts use Vertices[0]; lines
// use two vertices; polylines use all of them.
type Entity struct {
	Handle   string
	Kind     Kind
	Vertices []Vertex
	Closed   bool
	Ring     RingRole
	Text     string
	Record   int // Source record ordinal
	Attrs    Attributes
}

// Document is the capability the importer needs from a destination
type Document interface {
	// EnsureLayer creates the layer if needed and selects it
	EnsureLayer(name string) error
	// Insert adds e to the named layer and returns its handle
	Insert(layer string, e Entity) (string, error)
	// Defaults returns the current layer and display settings
	Defaults() (layer string, attrs Attributes)
}

// ErrNoLayer reports an insert into a layer that was never created
var ErrNoLayer = errors.New("no such layer")

// Layer is a named, ordered entity list
type Layer struct {
	Name     string
	Entities []Entity
}

// Drawing is an in-memory Document
type Drawing struct {
	mu       sync.Mutex
	layers   map[string]*Layer
	order    []string
	current  string
	defaults Attributes
}

// New creates a drawing with a single layer "0" and the given defaults
func New(defaults Attributes) *Drawing {
	d := &Drawing{
		layers:   make(map[string]*Layer),
		defaults: defaults,
	}
	d.EnsureLayer("0")
	return d
}

// EnsureLayer creates the layer if needed and makes it current
func (d *Drawing) EnsureLayer(name string) error {
	if name == "" {
		return fmt.Errorf("empty layer name")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layers[name]; !ok {
		d.layers[name] = &Layer{Name: name}
		d.order = append(d.order, name)
	}
	d.current = name
	return nil
}

// Insert appends e to the named layer and assigns it a handle
func (d *Drawing) Insert(layer string, e Entity) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.layers[layer]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoLayer, layer)
	}
	e.Handle = uuid.NewString()
	l.Entities = append(l.Entities, e)
	return e.Handle, nil
}

// Defaults returns the current layer and the default attributes
func (d *Drawing) Defaults() (string, Attributes) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.defaults
}

// Layers returns the layers in creation order
func (d *Drawing) Layers() []*Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Layer, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.layers[name])
	}
	return out
}

// Layer returns the named layer or nil
func (d *Drawing) Layer(name string) *Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layers[name]
}

// Count returns the number of entities of each kind across all layers
func (d *Drawing) Count() map[Kind]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	counts := make(map[Kind]int)
	for _, l := range d.layers {
		for _, e := range l.Entities {
			counts[e.Kind]++
		}
	}
	return counts
}
