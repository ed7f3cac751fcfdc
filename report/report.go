// Package report renders computed plans for callers outside the planner:
// the JSON document returned by the server and published on NATS, and the
// file exports of the command line.
package report

import (
	"time"

	"git.fiblab.net/sim/tourplan/planner"
	"github.com/samber/lo"
)

type RoadDoc struct {
	Name        string  `json:"name"`
	Origin      int64   `json:"origin"`
	Destination int64   `json:"destination"`
	Time        float64 `json:"time"`
}

type StopDoc struct {
	Kind         planner.StopKind `json:"kind"`
	Stop         int              `json:"stop"`
	Intersection int64            `json:"intersection"`
	Arrival      time.Time        `json:"arrival"`
	// 秒
	Wait         float64    `json:"wait"`
	ServiceStart *time.Time `json:"service_start,omitempty"`
	Departure    *time.Time `json:"departure,omitempty"`
	Travel       float64    `json:"travel"`
	Roads        []RoadDoc  `json:"roads"`
}

// PlanDoc is the serializable outcome of one computation. Tour fields are
// empty unless the status carries a tour.
type PlanDoc struct {
	ID        string         `json:"id,omitempty"`
	Status    planner.Status `json:"status"`
	Message   string         `json:"message"`
	Warehouse int64          `json:"warehouse"`
	Departure time.Time      `json:"departure"`
	Optimal   bool           `json:"optimal"`
	Nodes     int            `json:"nodes"`
	ElapsedMs float64        `json:"elapsed_ms"`

	Order  []int      `json:"order,omitempty"`
	Travel float64    `json:"travel"`
	Wait   float64    `json:"wait"`
	Return *time.Time `json:"return,omitempty"`
	Stops  []StopDoc  `json:"stops,omitempty"`
	Text   string     `json:"text,omitempty"`
}

func NewPlanDoc(p *planner.Plan) *PlanDoc {
	doc := &PlanDoc{
		Status:    p.Status,
		Message:   p.Status.Message(),
		Warehouse: p.Query.Warehouse.Intersection,
		Departure: p.Query.Warehouse.Departure,
		Optimal:   p.Result.Optimal,
		Nodes:     p.Result.Nodes,
		ElapsedMs: float64(p.Result.Elapsed) / float64(time.Millisecond),
	}
	if p.Itinerary == nil {
		return doc
	}
	it := p.Itinerary
	doc.Order = p.Result.Tour.Order
	doc.Travel = it.Travel.Seconds()
	doc.Wait = it.Wait.Seconds()
	ret := it.Return()
	doc.Return = &ret
	doc.Stops = lo.Map(it.Stops, func(s planner.StopRecord, _ int) StopDoc {
		sd := StopDoc{
			Kind:         s.Kind,
			Stop:         s.Stop,
			Intersection: s.Intersection,
			Arrival:      s.Arrival,
			Wait:         s.Wait.Seconds(),
			Travel:       s.Travel.Seconds(),
			Roads: lo.Map(s.Roads, func(r planner.Road, _ int) RoadDoc {
				return RoadDoc{Name: r.Name, Origin: r.Origin, Destination: r.Destination, Time: r.Time}
			}),
		}
		if s.Kind == planner.StopDelivery {
			sd.ServiceStart = lo.ToPtr(s.ServiceStart)
			sd.Departure = lo.ToPtr(s.Departure)
		}
		return sd
	})
	doc.Text = it.String()
	return doc
}
