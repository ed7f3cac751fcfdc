package store

import (
	"errors"
	"fmt"
	"time"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/tourplan/planner"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var ErrInvalidDocument = errors.New("invalid document")

var validate = validator.New()

// IntersectionDoc is the stored form of planner.Intersection.
type IntersectionDoc struct {
	ID int64   `json:"id" bson:"id"`
	X  float64 `json:"x" bson:"x"`
	Y  float64 `json:"y" bson:"y"`
}

// RoadDoc is the stored form of planner.Road, Time in seconds.
type RoadDoc struct {
	Origin      int64   `json:"origin" bson:"origin"`
	Destination int64   `json:"destination" bson:"destination"`
	Time        float64 `json:"time" bson:"time" validate:"gte=0"`
	Name        string  `json:"name" bson:"name"`
}

type NetworkDoc struct {
	Intersections []IntersectionDoc `json:"intersections" bson:"intersections" validate:"required,min=1,dive"`
	Roads         []RoadDoc         `json:"roads" bson:"roads" validate:"dive"`
}

// DeliveryDoc is one requested stop. Duration is in seconds.
type DeliveryDoc struct {
	Intersection int64      `json:"intersection" bson:"intersection"`
	Duration     float64    `json:"duration" bson:"duration" validate:"gte=0"`
	WindowStart  *time.Time `json:"window_start,omitempty" bson:"window_start,omitempty"`
}

type QueryDoc struct {
	Warehouse  int64         `json:"warehouse" bson:"warehouse"`
	Departure  time.Time     `json:"departure" bson:"departure" validate:"required"`
	Deliveries []DeliveryDoc `json:"deliveries" bson:"deliveries" validate:"dive"`
}

// Validate checks the struct tags of a document.
func Validate(doc any) error {
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// Network validates d and builds the road network.
func (d *NetworkDoc) Network() (*planner.Network, error) {
	if err := Validate(d); err != nil {
		return nil, fmt.Errorf("network document: %w", err)
	}
	its := lo.Map(d.Intersections, func(it IntersectionDoc, _ int) planner.Intersection {
		return planner.Intersection{ID: it.ID, Position: geometry.Point{X: it.X, Y: it.Y}}
	})
	roads := lo.Map(d.Roads, func(r RoadDoc, _ int) planner.Road {
		return planner.Road{Origin: r.Origin, Destination: r.Destination, Time: r.Time, Name: r.Name}
	})
	return planner.NewNetwork(its, roads)
}

// Query validates d and converts it. Intersection ids are checked later
// against the network by the planner.
func (d *QueryDoc) Query() (*planner.DeliveryQuery, error) {
	if err := Validate(d); err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	q := &planner.DeliveryQuery{
		Warehouse: planner.Warehouse{Intersection: d.Warehouse, Departure: d.Departure},
		Deliveries: lo.Map(d.Deliveries, func(dd DeliveryDoc, _ int) planner.Delivery {
			return planner.Delivery{
				Intersection: dd.Intersection,
				Duration:     time.Duration(dd.Duration * float64(time.Second)),
				WindowStart:  dd.WindowStart,
			}
		}),
	}
	return q, nil
}

// NewNetworkDoc is the inverse of NetworkDoc.Network.
func NewNetworkDoc(n *planner.Network) *NetworkDoc {
	d := &NetworkDoc{}
	for _, id := range n.IntersectionIDs() {
		it, _ := n.Intersection(id)
		d.Intersections = append(d.Intersections, IntersectionDoc{ID: id, X: it.Position.X, Y: it.Position.Y})
		for _, r := range n.RoadsFrom(id) {
			d.Roads = append(d.Roads, RoadDoc{Origin: r.Origin, Destination: r.Destination, Time: r.Time, Name: r.Name})
		}
	}
	return d
}
