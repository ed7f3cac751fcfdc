package planner

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/tourplan/planner/algo"
	"github.com/samber/lo"
)

// ErrBrokenChain means the shortest-path engine has no predecessor chain for
// a leg the optimizer used. It signals disagreement between stages and is
// raised as a panic.
var ErrBrokenChain = errors.New("no predecessor chain for tour leg")

// Leg is the road sequence driven to reach one stop from the previous one.
type Leg struct {
	// Stop is the passage point index reached, 0 for the return to the warehouse.
	Stop         int
	From         int64
	Intersection int64
	Roads        []Road
}

// Time is the summed travel time of the leg's roads in seconds.
func (l Leg) Time() float64 {
	return lo.SumBy(l.Roads, func(r Road) float64 { return r.Time })
}

// Route lists, in tour order, every stop with the roads used to reach it.
// The last leg returns to the warehouse.
type Route struct {
	Tour Tour
	Legs []Leg
}

func (r *Route) Time() float64 {
	return lo.SumBy(r.Legs, func(l Leg) float64 { return l.Time() })
}

// ReconstructRoute expands t into the literal roads between consecutive stops
// by walking shortest-path predecessor chains. It panics with ErrBrokenChain
// when a leg of t is unreachable in n.
func ReconstructRoute(t Tour, n *Network) *Route {
	trees := make(map[int64]*algo.ShortestPathTree[int64, Road])
	treeFrom := func(id int64) *algo.ShortestPathTree[int64, Road] {
		if tree, ok := trees[id]; ok {
			return tree
		}
		tree := n.shortestPathTree(id)
		trees[id] = tree
		return tree
	}

	route := &Route{Tour: t, Legs: make([]Leg, 0, len(t.Order))}
	// 依次连接相邻停靠点，最后回到仓库
	stops := append(append([]int(nil), t.Order...), 0)
	for k := 0; k+1 < len(stops); k++ {
		from, to := t.Points[stops[k]], t.Points[stops[k+1]]
		roads, ok := treeFrom(from).Edges(n.nodeID(to))
		if !ok {
			err := fmt.Errorf("%w: %d -> %d", ErrBrokenChain, from, to)
			log.Error(err)
			panic(err)
		}
		route.Legs = append(route.Legs, Leg{
			Stop:         stops[k+1],
			From:         from,
			Intersection: to,
			Roads:        roads,
		})
	}
	return route
}
