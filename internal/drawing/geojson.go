package drawing

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts the drawing to GeoJSON features. Ring
// polylines are regrouped into polygons: an outer ring starts a polygon
// and the inner rings that follow it in the same record become its holes.
// Other closed polylines become single-ring polygons.
func FeatureCollection(d *Drawing) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range d.Layers() {
		var open *geojson.Feature
		for _, e := range l.Entities {
			switch {
			case e.Kind == KindPolyline && e.Ring == RingInner && open != nil &&
				open.Properties["record"] == e.Record:
				poly := open.Geometry.(orb.Polygon)
				open.Geometry = append(poly, ring(e.Vertices))
				continue
			case e.Kind == KindPolyline && e.Closed:
				f := feature(l.Name, e, orb.Polygon{ring(e.Vertices)})
				fc.Append(f)
				open = nil
				if e.Ring == RingOuter {
					open = f
				}
				continue
			}

			open = nil
			var g orb.Geometry
			switch e.Kind {
			case KindPoint, KindText:
				g = orb.Point{e.Vertices[0].X, e.Vertices[0].Y}
			default:
				ls := make(orb.LineString, len(e.Vertices))
				for i, v := range e.Vertices {
					ls[i] = orb.Point{v.X, v.Y}
				}
				g = ls
			}
			fc.Append(feature(l.Name, e, g))
		}
	}
	return fc
}

// WriteGeoJSON writes the drawing as a GeoJSON feature collection
func WriteGeoJSON(w io.Writer, d *Drawing) error {
	data, err := FeatureCollection(d).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func ring(vs []Vertex) orb.Ring {
	r := make(orb.Ring, 0, len(vs)+1)
	for _, v := range vs {
		r = append(r, orb.Point{v.X, v.Y})
	}
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

func feature(layer string, e Entity, g orb.Geometry) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.ID = e.Handle
	f.Properties["layer"] = layer
	f.Properties["kind"] = e.Kind.String()
	f.Properties["record"] = e.Record
	f.Properties["color"] = e.Attrs.Color.Hex()
	f.Properties["linetype"] = e.Attrs.LineType
	f.Properties["width"] = e.Attrs.Width
	if e.Kind == KindText {
		f.Properties["text"] = e.Text
	}
	if len(e.Vertices) > 0 && (e.Kind == KindPoint || e.Kind == KindText) {
		f.Properties["z"] = e.Vertices[0].Z
	}
	return f
}
