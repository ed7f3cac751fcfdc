package planner

import (
	"context"
	"time"

	"git.fiblab.net/sim/tourplan/planner/algo"
	"github.com/samber/lo"
)

// NoTimeLimit disables the optimizer deadline.
const NoTimeLimit = algo.NO_TIME_LIMIT

// Tour is a visiting order over passage points, closed back to the warehouse.
type Tour struct {
	// Points are the passage point intersections, Points[0] is the warehouse.
	Points []int64
	// Order holds passage point indices and starts with 0.
	Order []int
	// Travel is the driving time of the closed tour in seconds.
	Travel float64
	// Wait is the time spent waiting for windows to open, in seconds.
	Wait float64
}

// Stops returns the intersections in visiting order without the closing leg.
func (t Tour) Stops() []int64 {
	return lo.Map(t.Order, func(i int, _ int) int64 { return t.Points[i] })
}

func (t Tour) Cost() float64 {
	return t.Travel + t.Wait
}

type TourResult struct {
	Tour    Tour
	Found   bool
	Optimal bool
	Nodes   int
	Elapsed time.Duration
}

// OptimizeTour searches the best visiting order for q over m. Service
// durations and window starts are taken from q relative to the warehouse
// departure. timeLimit bounds the search; NoTimeLimit searches exhaustively.
// Infeasibility and timeouts are reported through Found and Optimal.
func OptimizeTour(ctx context.Context, m *DistanceMatrix, q *DeliveryQuery, timeLimit time.Duration) TourResult {
	n := m.Len()
	durations := make([]float64, n)
	windows := make([]float64, n)
	windows[0] = algo.NO_WINDOW
	for i, d := range q.Deliveries {
		durations[i+1] = algo.DurationToSeconds(d.Duration)
		windows[i+1] = algo.NO_WINDOW
		if d.HasWindow() {
			windows[i+1] = algo.DurationToSeconds(d.WindowStart.Sub(q.Warehouse.Departure))
		}
	}
	res, err := algo.OptimizeTour(ctx,
		algo.TourProblem{Costs: m.Costs, Durations: durations, Windows: windows},
		algo.TourOptions{TimeLimit: timeLimit},
	)
	if err != nil {
		// 矩阵与查询由同一组passage points生成
		log.Panicf("optimize tour: %v", err)
	}
	out := TourResult{
		Found:   res.Found,
		Optimal: res.Optimal,
		Nodes:   res.Nodes,
		Elapsed: res.Elapsed,
	}
	if res.Found {
		out.Tour = Tour{
			Points: m.Points,
			Order:  res.Order,
			Travel: res.Travel,
			Wait:   res.Wait,
		}
	}
	log.Debugf("optimize tour: n=%d found=%v optimal=%v nodes=%d elapsed=%v",
		n, res.Found, res.Optimal, res.Nodes, res.Elapsed)
	return out
}
