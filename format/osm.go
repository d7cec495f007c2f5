package format

import (
	"encoding/xml"
	"io"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
)

// Generator is written to the generator attribute of OSM files.
const Generator = "parcel"

// readOSM returns the closed ways of an OSM XML document, in document order.
func readOSM(b []byte) ([]parcel.Contour, error) {
	o := &osm.OSM{}
	if err := xml.Unmarshal(b, o); err != nil {
		return nil, err
	}

	nodes := make(map[osm.NodeID]*osm.Node, len(o.Nodes))
	for _, n := range o.Nodes {
		nodes[n.ID] = n
	}

	cs := []parcel.Contour{}
	for _, way := range o.Ways {
		if len(way.Nodes) < 4 || way.Nodes[0].ID != way.Nodes[len(way.Nodes)-1].ID {
			continue
		}
		c := make(parcel.Contour, 0, len(way.Nodes)-1)
		for _, wn := range way.Nodes[:len(way.Nodes)-1] {
			n, ok := nodes[wn.ID]
			if !ok {
				return nil, errors.Errorf("way %d references missing node %d", way.ID, wn.ID)
			}
			c = append(c, parcel.Pt(parcel.FixedFromFloat(n.Lon), parcel.FixedFromFloat(n.Lat)))
		}
		cs = append(cs, c)
	}
	return cs, nil
}

// writeOSM writes every contour as a closed way with new (negative) node and way IDs. Shared vertices reuse the same node.
func writeOSM(w io.Writer, cs []parcel.Contour) error {
	o := &osm.OSM{
		Version:   "0.6",
		Generator: Generator,
	}
	ids := map[string]osm.NodeID{}
	for i, c := range cs {
		way := &osm.Way{
			ID:      osm.WayID(-i - 1),
			Visible: true,
			Tags:    osm.Tags{{Key: "landuse", Value: "parcel"}},
		}
		for _, p := range c {
			id, ok := ids[p.Key()]
			if !ok {
				id = osm.NodeID(-len(ids) - 1)
				ids[p.Key()] = id
				lon, lat := p.Float()
				o.Nodes = append(o.Nodes, &osm.Node{ID: id, Lat: lat, Lon: lon, Visible: true})
			}
			way.Nodes = append(way.Nodes, osm.WayNode{ID: id})
		}
		if 0 < len(way.Nodes) {
			way.Nodes = append(way.Nodes, way.Nodes[0])
		}
		o.Ways = append(o.Ways, way)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(o); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
