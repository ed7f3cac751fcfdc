package planner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"git.fiblab.net/sim/tourplan/planner/algo"
)

type StopKind string

const (
	StopDelivery StopKind = "delivery"
	StopReturn   StopKind = "return"
)

// StopRecord is one stop of the itinerary. For a delivery, service starts at
// ServiceStart = Arrival + Wait and ends at Departure. The return to the
// warehouse only has an Arrival.
type StopRecord struct {
	Kind         StopKind
	Stop         int
	Intersection int64
	Arrival      time.Time
	Wait         time.Duration
	ServiceStart time.Time
	Departure    time.Time
	Travel       time.Duration
	Roads        []Road
}

func (s StopRecord) Waited() bool {
	return s.Wait > 0
}

type Itinerary struct {
	Warehouse int64
	Departure time.Time
	Stops     []StopRecord
	// 总行驶时间与总等待时间
	Travel time.Duration
	Wait   time.Duration
}

// Return is the arrival time back at the warehouse.
func (it *Itinerary) Return() time.Time {
	if len(it.Stops) == 0 {
		return it.Departure
	}
	return it.Stops[len(it.Stops)-1].Arrival
}

// FormatItinerary simulates the clock along r starting at the warehouse
// departure of q.
func FormatItinerary(r *Route, q *DeliveryQuery) *Itinerary {
	clock := q.Warehouse.Departure
	it := &Itinerary{
		Warehouse: q.Warehouse.Intersection,
		Departure: clock,
		Stops:     make([]StopRecord, 0, len(r.Legs)),
	}
	for _, leg := range r.Legs {
		travel := algo.SecondsToDuration(leg.Time())
		clock = clock.Add(travel)
		it.Travel += travel
		rec := StopRecord{
			Kind:         StopReturn,
			Stop:         leg.Stop,
			Intersection: leg.Intersection,
			Arrival:      clock,
			Travel:       travel,
			Roads:        leg.Roads,
		}
		if d, ok := q.Delivery(leg.Stop); ok {
			rec.Kind = StopDelivery
			// 早到需等待时间窗开启
			if d.HasWindow() && d.WindowStart.After(clock) {
				rec.Wait = d.WindowStart.Sub(clock)
				clock = *d.WindowStart
				it.Wait += rec.Wait
			}
			rec.ServiceStart = clock
			clock = clock.Add(d.Duration)
			rec.Departure = clock
		}
		it.Stops = append(it.Stops, rec)
	}
	return it
}

func formatClock(t time.Time) string {
	return t.Format("15:04:05")
}

func formatWait(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.Round(time.Second).String()
}

// WriteTo renders the itinerary as a plain-text planning sheet.
func (it *Itinerary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Planning (%s)\n", it.Departure.Format("02 Jan 2006"))
	fmt.Fprintf(&b, "\tLeave warehouse (intersection %d) at %s.\n", it.Warehouse, formatClock(it.Departure))
	for _, s := range it.Stops {
		switch s.Kind {
		case StopDelivery:
			fmt.Fprintf(&b, "\tDelivery %d\n", s.Stop)
			fmt.Fprintf(&b, "\t\tArrival: %s.", formatClock(s.Arrival))
			if s.Waited() {
				fmt.Fprintf(&b, " Wait %s.", formatWait(s.Wait))
			}
			fmt.Fprintf(&b, " Departure: %s. Address: intersection %d.\n", formatClock(s.Departure), s.Intersection)
		case StopReturn:
			fmt.Fprintf(&b, "\tReturn to warehouse\n")
			fmt.Fprintf(&b, "\t\tArrival: %s. Address: intersection %d.\n", formatClock(s.Arrival), s.Intersection)
		}
		for _, r := range s.Roads {
			fmt.Fprintf(&b, "\t\t\tFollow road %s (from intersection %d)\n", r.Name, r.Origin)
		}
	}
	fmt.Fprintf(&b, "\tTotal: travel %s, waiting %s.\n", it.Travel.Round(time.Second), it.Wait.Round(time.Second))
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func (it *Itinerary) String() string {
	var b strings.Builder
	it.WriteTo(&b)
	return b.String()
}
