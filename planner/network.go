package planner

import (
	"errors"
	"fmt"
	"slices"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/tourplan/planner/algo"
	"github.com/samber/lo"
)

var (
	ErrDuplicateIntersection = errors.New("duplicate intersection id")
	ErrUnknownIntersection   = errors.New("unknown intersection id")
	ErrNegativeTravelTime    = errors.New("negative road travel time")
)

// Intersection is a node of the road network. Position is only carried for
// display.
type Intersection struct {
	ID       int64
	Position geometry.Point
}

// Road is a directed edge, Time is the travel time in seconds.
type Road struct {
	Origin      int64
	Destination int64
	Time        float64
	Name        string
}

// Network is an immutable road network. It is safe to share between
// concurrent computations once built.
type Network struct {
	// Network Topo
	// 1. 拓扑中的点为路口，按id升序编号
	// 2. 拓扑中的边为道路，保留同一对路口之间的所有平行道路
	// 3. cost为道路通行时间（秒）
	intersections map[int64]Intersection
	roads         map[int64][]Road
	ids           []int64
	// intersection id -> graph node id
	nodeIDs map[int64]int

	graph *algo.SearchGraph[int64, Road]
}

// NewNetwork validates the inputs and builds the search graph. Every road
// endpoint must be a known intersection and travel times must be
// non-negative.
func NewNetwork(intersections []Intersection, roads []Road) (*Network, error) {
	n := &Network{
		intersections: make(map[int64]Intersection, len(intersections)),
		roads:         make(map[int64][]Road),
		nodeIDs:       make(map[int64]int, len(intersections)),
	}
	for _, it := range intersections {
		if _, ok := n.intersections[it.ID]; ok {
			return nil, fmt.Errorf("new network: %w: %d", ErrDuplicateIntersection, it.ID)
		}
		n.intersections[it.ID] = it
	}
	for i, r := range roads {
		if _, ok := n.intersections[r.Origin]; !ok {
			return nil, fmt.Errorf("new network: road %d (%q) origin: %w: %d", i, r.Name, ErrUnknownIntersection, r.Origin)
		}
		if _, ok := n.intersections[r.Destination]; !ok {
			return nil, fmt.Errorf("new network: road %d (%q) destination: %w: %d", i, r.Name, ErrUnknownIntersection, r.Destination)
		}
		if r.Time < 0 {
			return nil, fmt.Errorf("new network: road %d (%q): %w: %v", i, r.Name, ErrNegativeTravelTime, r.Time)
		}
		n.roads[r.Origin] = append(n.roads[r.Origin], r)
	}
	n.ids = lo.Keys(n.intersections)
	slices.Sort(n.ids)
	n.buildGraph()
	log.Debugf("network built: %d intersections, %d roads", len(n.ids), len(roads))
	return n, nil
}

func (n *Network) buildGraph() {
	g := algo.NewSearchGraph[int64, Road]()
	// 将路口加入graph
	for _, id := range n.ids {
		n.nodeIDs[id] = g.InitNode(n.intersections[id].Position, id)
	}
	// 将道路加入graph
	for _, id := range n.ids {
		for _, r := range n.roads[id] {
			if err := g.InitEdge(n.nodeIDs[r.Origin], n.nodeIDs[r.Destination], r.Time, r); err != nil {
				// 已在NewNetwork中校验
				log.Panicf("init edge for road %+v: %v", r, err)
			}
		}
	}
	n.graph = g
}

// getter

func (n *Network) HasIntersection(id int64) bool {
	_, ok := n.intersections[id]
	return ok
}

func (n *Network) Intersection(id int64) (Intersection, bool) {
	it, ok := n.intersections[id]
	return it, ok
}

// IntersectionIDs returns all ids in ascending order.
func (n *Network) IntersectionIDs() []int64 {
	return slices.Clone(n.ids)
}

// RoadsFrom returns the outgoing roads of id in input order.
func (n *Network) RoadsFrom(id int64) []Road {
	return slices.Clone(n.roads[id])
}

func (n *Network) IntersectionCount() int {
	return len(n.ids)
}

func (n *Network) RoadCount() int {
	return n.graph.EdgeCount()
}

func (n *Network) nodeID(id int64) int {
	v, ok := n.nodeIDs[id]
	if !ok {
		log.Panicf("intersection %d not in network", id)
	}
	return v
}

// shortestPathTree runs the shortest-path engine from intersection id.
func (n *Network) shortestPathTree(id int64) *algo.ShortestPathTree[int64, Road] {
	return n.graph.ShortestPathTree(n.nodeID(id))
}
