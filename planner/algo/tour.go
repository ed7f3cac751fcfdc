package algo

import (
	"context"
	"fmt"
	"time"
)

// TourProblem is a closed tour from node 0 over all other nodes of Costs.
//
// Durations[i] is the service time spent at node i and Windows[i] the earliest
// service start, both in seconds relative to departure from node 0. A nil
// slice means no service time / no windows; NO_WINDOW disables a single
// window. Entry 0 of both slices is ignored.
type TourProblem struct {
	Costs     [][]float64
	Durations []float64
	Windows   []float64
}

func (p TourProblem) check() error {
	n := len(p.Costs)
	if n == 0 {
		return fmt.Errorf("%w: empty cost matrix", ErrDimensionMismatch)
	}
	for i, row := range p.Costs {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d entries, want %d", ErrDimensionMismatch, i, len(row), n)
		}
	}
	if p.Durations != nil && len(p.Durations) != n {
		return fmt.Errorf("%w: %d durations for %d nodes", ErrDimensionMismatch, len(p.Durations), n)
	}
	if p.Windows != nil && len(p.Windows) != n {
		return fmt.Errorf("%w: %d windows for %d nodes", ErrDimensionMismatch, len(p.Windows), n)
	}
	return nil
}

type TourOptions struct {
	// 搜索时间上限，NO_TIME_LIMIT表示不限制
	TimeLimit time.Duration
	// 每扩展多少节点检查一次截止时间，<=0时使用DEADLINE_CHECK_INTERVAL
	CheckInterval int
}

type TourResult struct {
	// 访问顺序，以0开头，不含回到0的闭合边
	Order []int
	// 行驶时间（含回程）
	Travel float64
	// 因时间窗产生的等待时间
	Wait float64
	// 是否找到可行解
	Found bool
	// 是否在截止时间前穷尽了搜索空间
	Optimal bool
	// 扩展的搜索节点数
	Nodes int
	// 搜索用时
	Elapsed time.Duration
}

// Cost is the objective minimised by the search: travel plus waiting.
func (r TourResult) Cost() float64 {
	return r.Travel + r.Wait
}

type bbEngine struct {
	n         int
	w         [][]float64
	durations []float64
	windows   []float64

	// 每个点最便宜的入边，用于下界
	minIn []float64

	ctx         context.Context
	useDeadline bool
	deadline    time.Time
	interval    int
	steps       int
	stopped     bool

	visited []bool
	path    []int

	bestOrder  []int
	bestCost   float64
	bestTravel float64
	bestWait   float64
	found      bool
}

func newEngine(ctx context.Context, p TourProblem, opts TourOptions) *bbEngine {
	n := len(p.Costs)
	e := &bbEngine{
		n:         n,
		w:         p.Costs,
		durations: p.Durations,
		windows:   p.Windows,
		ctx:       ctx,
		interval:  opts.CheckInterval,
		visited:   make([]bool, n),
		path:      make([]int, 0, n),
		bestCost:  INF,
	}
	if e.interval <= 0 {
		e.interval = DEADLINE_CHECK_INTERVAL
	}
	if opts.TimeLimit >= 0 {
		e.useDeadline = true
		e.deadline = time.Now().Add(opts.TimeLimit)
	}
	e.minIn = make([]float64, n)
	for v := 0; v < n; v++ {
		m := INF
		for u := 0; u < n; u++ {
			if u != v && e.w[u][v] < m {
				m = e.w[u][v]
			}
		}
		e.minIn[v] = m
	}
	if n == 1 {
		e.minIn[0] = 0
	}
	return e
}

// tick counts an expanded node and reports whether the search must stop.
// The clock is only read every interval nodes.
func (e *bbEngine) tick() bool {
	e.steps++
	if e.steps%e.interval != 0 {
		return false
	}
	if e.ctx.Err() != nil {
		return true
	}
	return e.useDeadline && !time.Now().Before(e.deadline)
}

func (e *bbEngine) duration(v int) float64 {
	if e.durations == nil {
		return 0
	}
	return e.durations[v]
}

func (e *bbEngine) window(v int) float64 {
	if e.windows == nil {
		return NO_WINDOW
	}
	return e.windows[v]
}

// search extends the partial path ending at last. rest is the sum of minIn
// over the nodes not yet visited.
func (e *bbEngine) search(last int, travel, wait, clock, rest float64) {
	if e.stopped {
		return
	}
	if e.tick() {
		e.stopped = true
		return
	}
	if len(e.path) == e.n {
		back := e.w[last][0]
		if back == INF {
			return
		}
		if travel+back+wait < e.bestCost {
			e.bestCost = travel + back + wait
			e.bestTravel = travel + back
			e.bestWait = wait
			e.bestOrder = append(e.bestOrder[:0], e.path...)
			e.found = true
			log.Debugf("tour improved: cost=%v order=%v nodes=%d", e.bestCost, e.bestOrder, e.steps)
		}
		return
	}
	for v := 1; v < e.n; v++ {
		if e.visited[v] {
			continue
		}
		leg := e.w[last][v]
		if leg == INF {
			continue
		}
		t, c, wt := travel+leg, clock+leg, wait
		if ws := e.window(v); ws > c {
			wt += ws - c
			c = ws
		}
		r := rest - e.minIn[v]
		// 剪枝：已累计代价加上剩余下界不优于当前最优解
		if t+wt+r+e.minIn[0] >= e.bestCost {
			continue
		}
		e.visited[v] = true
		e.path = append(e.path, v)
		e.search(v, t, wt, c+e.duration(v), r)
		e.path = e.path[:len(e.path)-1]
		e.visited[v] = false
		if e.stopped {
			return
		}
	}
}

// OptimizeTour runs a depth-first branch-and-bound over all orders that start
// at node 0. Children are expanded in ascending node order so that among
// equal-cost tours the first one found is kept.
//
// When the time limit expires or ctx is cancelled the best tour found so far
// is returned with Optimal=false. Found=false means no closed tour exists or
// none was reached in time.
func OptimizeTour(ctx context.Context, p TourProblem, opts TourOptions) (TourResult, error) {
	if err := p.check(); err != nil {
		return TourResult{}, err
	}
	start := time.Now()
	e := newEngine(ctx, p, opts)
	rest := 0.0
	for v := 1; v < e.n; v++ {
		rest += e.minIn[v]
	}
	e.visited[0] = true
	e.path = append(e.path, 0)
	e.search(0, 0, 0, 0, rest)

	res := TourResult{
		Found:   e.found,
		Optimal: !e.stopped,
		Nodes:   e.steps,
		Elapsed: time.Since(start),
	}
	if e.found {
		res.Order = e.bestOrder
		res.Travel = e.bestTravel
		res.Wait = e.bestWait
	}
	return res, nil
}
