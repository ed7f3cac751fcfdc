package planner

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNegativeDuration = errors.New("negative service duration")
	ErrNoDeparture      = errors.New("warehouse departure time is not set")
)

type Warehouse struct {
	Intersection int64
	Departure    time.Time
}

// Delivery is a stop requiring service. Service never starts before
// WindowStart when it is set; an early arrival waits.
type Delivery struct {
	Intersection int64
	Duration     time.Duration
	WindowStart  *time.Time
}

func (d Delivery) HasWindow() bool {
	return d.WindowStart != nil
}

type DeliveryQuery struct {
	Warehouse  Warehouse
	Deliveries []Delivery
}

// PassagePoints lists the intersections to visit, index 0 being the
// warehouse and index i the intersection of Deliveries[i-1]. Two deliveries
// on the same intersection stay two distinct passage points.
func (q *DeliveryQuery) PassagePoints() []int64 {
	points := make([]int64, 0, len(q.Deliveries)+1)
	points = append(points, q.Warehouse.Intersection)
	for _, d := range q.Deliveries {
		points = append(points, d.Intersection)
	}
	return points
}

// Delivery returns the delivery served at passage point i, false for the
// warehouse.
func (q *DeliveryQuery) Delivery(i int) (Delivery, bool) {
	if i <= 0 || i > len(q.Deliveries) {
		return Delivery{}, false
	}
	return q.Deliveries[i-1], true
}

// Validate checks that the query only references intersections of n.
func (q *DeliveryQuery) Validate(n *Network) error {
	if q.Warehouse.Departure.IsZero() {
		return fmt.Errorf("validate query: %w", ErrNoDeparture)
	}
	if !n.HasIntersection(q.Warehouse.Intersection) {
		return fmt.Errorf("validate query: warehouse: %w: %d", ErrUnknownIntersection, q.Warehouse.Intersection)
	}
	for i, d := range q.Deliveries {
		if !n.HasIntersection(d.Intersection) {
			return fmt.Errorf("validate query: delivery %d: %w: %d", i, ErrUnknownIntersection, d.Intersection)
		}
		if d.Duration < 0 {
			return fmt.Errorf("validate query: delivery %d: %w: %v", i, ErrNegativeDuration, d.Duration)
		}
	}
	return nil
}
