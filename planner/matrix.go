package planner

import (
	"git.fiblab.net/sim/tourplan/planner/algo"
	"github.com/samber/lo"
)

// DistanceMatrix holds the shortest travel times in seconds between passage
// points. Costs[i][j] is math.Inf(1) when Points[j] cannot be reached from
// Points[i].
type DistanceMatrix struct {
	Points []int64
	Costs  [][]float64
}

func (m *DistanceMatrix) Len() int {
	return len(m.Points)
}

func (m *DistanceMatrix) At(i, j int) float64 {
	return m.Costs[i][j]
}

func (m *DistanceMatrix) Reachable(i, j int) bool {
	return m.Costs[i][j] != algo.INF
}

// ComputeDistanceMatrix runs the shortest-path engine once per passage point.
// The points must belong to n.
func ComputeDistanceMatrix(n *Network, points []int64) *DistanceMatrix {
	nodes := lo.Map(points, func(id int64, _ int) int { return n.nodeID(id) })
	costs, _ := n.graph.CostMatrix(nodes)
	return &DistanceMatrix{
		Points: append([]int64(nil), points...),
		Costs:  costs,
	}
}
