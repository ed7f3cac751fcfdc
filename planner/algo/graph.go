package algo

import (
	"container/heap"
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
)

type node[T any] struct {
	p    geometry.Point
	attr T
}

type edge[T any] struct {
	to   int
	v    float64
	attr T
}

// SearchGraph is a directed weighted graph with dense node ids.
// Parallel edges between the same pair of nodes are kept as separate entries.
type SearchGraph[NT any, ET any] struct {
	// 邻接表，in node -> out edges
	// 构建完成后只读，可被多个计算共享
	edges [][]edge[ET]
	// 点的位置与属性
	nodes []node[NT]
}

func NewSearchGraph[NT any, ET any]() *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges: make([][]edge[ET], 0),
		nodes: make([]node[NT], 0),
	}
}

func (g *SearchGraph[NT, ET]) InitNode(p geometry.Point, attr NT) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr})
	g.edges = append(g.edges, make([]edge[ET], 0))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, length float64, attr ET) error {
	if from < 0 || from >= len(g.nodes) || to < 0 || to >= len(g.nodes) {
		return fmt.Errorf("%w: edge %d->%d with %d nodes", ErrNodeNotFound, from, to, len(g.nodes))
	}
	if length < 0 {
		return fmt.Errorf("%w: edge %d->%d length %v", ErrNegativeWeight, from, to, length)
	}
	g.edges[from] = append(g.edges[from], edge[ET]{to: to, v: length, attr: attr})
	return nil
}

func (g *SearchGraph[NT, ET]) NodeCount() int {
	return len(g.nodes)
}

func (g *SearchGraph[NT, ET]) EdgeCount() int {
	return lo.SumBy(g.edges, func(es []edge[ET]) int { return len(es) })
}

func (g *SearchGraph[NT, ET]) NodeAttr(id int) NT {
	return g.nodes[id].attr
}

func (g *SearchGraph[NT, ET]) NodePosition(id int) geometry.Point {
	return g.nodes[id].p
}

type PathItem[NT any, ET any] struct {
	NodeAttr NT
	// 离开该点所走的边，终点处为零值
	EdgeAttr ET
}

// ShortestPathTree holds the result of a single-source Dijkstra run: the cost
// to every node (INF when unreachable) and the predecessor node and edge that
// realised it.
type ShortestPathTree[NT any, ET any] struct {
	g      *SearchGraph[NT, ET]
	source int
	cost   []float64
	// 前驱节点，-1表示无
	cameFrom []int
	// 前驱边在edges[cameFrom]中的下标，用于区分平行边
	cameBy []int
}

func (t *ShortestPathTree[NT, ET]) Source() int {
	return t.source
}

func (t *ShortestPathTree[NT, ET]) Cost(to int) float64 {
	return t.cost[to]
}

func (t *ShortestPathTree[NT, ET]) Reachable(to int) bool {
	return t.cost[to] != INF
}

// Path returns the node/edge sequence from the tree source to end, and false
// when end was never reached.
func (t *ShortestPathTree[NT, ET]) Path(end int) ([]PathItem[NT, ET], bool) {
	if !t.Reachable(end) {
		return nil, false
	}
	g := t.g
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[end].attr}}
	cur := end
	for cur != t.source {
		from := t.cameFrom[cur]
		if from < 0 {
			return nil, false
		}
		pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
			NodeAttr: g.nodes[from].attr,
			EdgeAttr: g.edges[from][t.cameBy[cur]].attr,
		})
		cur = from
	}
	return lo.Reverse(pathBeforeReversed), true
}

// Edges returns only the edge attributes along the path from the source to end.
func (t *ShortestPathTree[NT, ET]) Edges(end int) ([]ET, bool) {
	path, ok := t.Path(end)
	if !ok {
		return nil, false
	}
	return lo.Map(path[:len(path)-1], func(item PathItem[NT, ET], _ int) ET {
		return item.EdgeAttr
	}), true
}

// Dijkstra算法求单源最短路
func (g *SearchGraph[NT, ET]) ShortestPathTree(start int) *ShortestPathTree[NT, ET] {
	n := len(g.nodes)
	t := &ShortestPathTree[NT, ET]{
		g:        g,
		source:   start,
		cost:     make([]float64, n),
		cameFrom: make([]int, n),
		cameBy:   make([]int, n),
	}
	for i := 0; i < n; i++ {
		t.cost[i] = INF
		t.cameFrom[i] = -1
		t.cameBy[i] = -1
	}
	t.cost[start] = 0
	visited := make([]bool, n)
	openSet := PriorityQueue{{Value: start, Priority: 0, Index: 0}}
	openSetMap := map[int]*Item{start: openSet[0]} // openSet value -> openSet item
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		delete(openSetMap, cur)
		visited[cur] = true
		for i, e := range g.edges[cur] {
			// 只松弛尚未确定最短路的点
			if visited[e.to] {
				continue
			}
			tentative := t.cost[cur] + e.v
			if tentative < t.cost[e.to] {
				t.cost[e.to] = tentative
				t.cameFrom[e.to] = cur
				t.cameBy[e.to] = i
				if item, ok := openSetMap[e.to]; ok {
					// 已在堆中的节点，修改其优先级
					item.Priority = tentative
					heap.Fix(&openSet, item.Index)
				} else {
					item := &Item{Value: e.to, Priority: tentative}
					heap.Push(&openSet, item)
					openSetMap[e.to] = item
				}
			}
		}
	}
	return t
}

// CostMatrix runs one Dijkstra per point and projects the costs onto points.
// Row i, column j is the shortest travel cost from points[i] to points[j],
// INF when unreachable. The trees are returned for path reconstruction.
func (g *SearchGraph[NT, ET]) CostMatrix(points []int) ([][]float64, []*ShortestPathTree[NT, ET]) {
	costs := make([][]float64, len(points))
	trees := make([]*ShortestPathTree[NT, ET], len(points))
	for i, p := range points {
		tree := g.ShortestPathTree(p)
		row := make([]float64, len(points))
		for j, q := range points {
			row[j] = tree.Cost(q)
		}
		costs[i] = row
		trees[i] = tree
	}
	return costs, trees
}
