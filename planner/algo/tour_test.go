package algo_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"git.fiblab.net/sim/tourplan/planner/algo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inf = algo.INF

func permutations(xs []int) [][]int {
	if len(xs) <= 1 {
		return [][]int{append([]int(nil), xs...)}
	}
	var out [][]int
	for i := range xs {
		rest := append(append([]int(nil), xs[:i]...), xs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int{xs[i]}, p...))
		}
	}
	return out
}

func closedCost(costs [][]float64, order []int) float64 {
	c := 0.0
	for i := 0; i+1 < len(order); i++ {
		c += costs[order[i]][order[i+1]]
	}
	return c + costs[order[len(order)-1]][0]
}

func TestOptimizeTourThreeDeliveries(t *testing.T) {
	costs := [][]float64{
		{0, 11, 29, 17},
		{13, 0, 7, 31},
		{23, 19, 0, 5},
		{3, 37, 41, 0},
	}
	want := inf
	for _, p := range permutations([]int{1, 2, 3}) {
		if c := closedCost(costs, append([]int{0}, p...)); c < want {
			want = c
		}
	}

	res, err := algo.OptimizeTour(context.Background(), algo.TourProblem{Costs: costs}, algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.Optimal)
	assert.Equal(t, want, res.Travel)
	assert.Equal(t, 0.0, res.Wait)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Order)
	assert.Equal(t, want, closedCost(costs, res.Order))
}

func TestOptimizeTourRandomMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		n := 2 + r.Intn(5)
		costs := make([][]float64, n)
		windows := make([]float64, n)
		durations := make([]float64, n)
		for i := range costs {
			costs[i] = make([]float64, n)
			for j := range costs[i] {
				if i != j {
					costs[i][j] = float64(1 + r.Intn(50))
				}
			}
			windows[i] = algo.NO_WINDOW
			if i > 0 && r.Intn(2) == 0 {
				windows[i] = float64(r.Intn(120))
			}
			durations[i] = float64(r.Intn(10))
		}
		// 暴力枚举，目标为行驶时间加等待时间
		best := inf
		rest := make([]int, 0, n-1)
		for i := 1; i < n; i++ {
			rest = append(rest, i)
		}
		for _, p := range permutations(rest) {
			order := append([]int{0}, p...)
			clock, wait := 0.0, 0.0
			for i := 1; i < len(order); i++ {
				clock += costs[order[i-1]][order[i]]
				if windows[order[i]] > clock {
					wait += windows[order[i]] - clock
					clock = windows[order[i]]
				}
				clock += durations[order[i]]
			}
			if c := closedCost(costs, order) + wait; c < best {
				best = c
			}
		}

		res, err := algo.OptimizeTour(context.Background(),
			algo.TourProblem{Costs: costs, Durations: durations, Windows: windows},
			algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT})
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.True(t, res.Optimal)
		assert.InDelta(t, best, res.Cost(), 1e-9, "round %d", round)
	}
}

func TestOptimizeTourSingleNode(t *testing.T) {
	res, err := algo.OptimizeTour(context.Background(), algo.TourProblem{Costs: [][]float64{{0}}}, algo.TourOptions{TimeLimit: 0})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.Optimal)
	assert.Equal(t, []int{0}, res.Order)
	assert.Equal(t, 0.0, res.Cost())
}

func TestOptimizeTourUnreachable(t *testing.T) {
	costs := [][]float64{
		{0, 4, inf},
		{4, 0, inf},
		{6, 6, 0},
	}
	res, err := algo.OptimizeTour(context.Background(), algo.TourProblem{Costs: costs}, algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.Optimal)
	assert.Nil(t, res.Order)
}

func TestOptimizeTourNoWayBack(t *testing.T) {
	costs := [][]float64{
		{0, 4},
		{inf, 0},
	}
	res, err := algo.OptimizeTour(context.Background(), algo.TourProblem{Costs: costs}, algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT})
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestOptimizeTourWindowWait(t *testing.T) {
	// 0->1->2->0 与 0->2->1->0，2号点的时间窗使第一条路线需要等待
	costs := [][]float64{
		{0, 300, 500},
		{300, 0, 300},
		{300, 500, 0},
	}
	durations := []float64{0, 300, 600}
	windows := []float64{algo.NO_WINDOW, algo.NO_WINDOW, 1200}
	res, err := algo.OptimizeTour(context.Background(),
		algo.TourProblem{Costs: costs, Durations: durations, Windows: windows},
		algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, res.Order)
	assert.Equal(t, 900.0, res.Travel)
	assert.Equal(t, 300.0, res.Wait)
}

func TestOptimizeTourDeterministicTies(t *testing.T) {
	costs := [][]float64{
		{0, 1, 1, 1},
		{1, 0, 1, 1},
		{1, 1, 0, 1},
		{1, 1, 1, 0},
	}
	for i := 0; i < 3; i++ {
		res, err := algo.OptimizeTour(context.Background(), algo.TourProblem{Costs: costs}, algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3}, res.Order)
	}
}

func largeProblem(n int) algo.TourProblem {
	r := rand.New(rand.NewSource(1))
	costs := make([][]float64, n)
	for i := range costs {
		costs[i] = make([]float64, n)
		for j := range costs[i] {
			if i != j {
				costs[i][j] = float64(100 + r.Intn(900))
			}
		}
	}
	return algo.TourProblem{Costs: costs}
}

func TestOptimizeTourZeroDeadline(t *testing.T) {
	p := largeProblem(40)
	start := time.Now()
	res, err := algo.OptimizeTour(context.Background(), p, algo.TourOptions{TimeLimit: 0})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.Optimal)
	assert.Equal(t, algo.DEADLINE_CHECK_INTERVAL, res.Nodes)
	// 深度优先在第一次检查前就能走完一条完整路线
	assert.True(t, res.Found)
	assert.Len(t, res.Order, 40)
}

func TestOptimizeTourCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := algo.OptimizeTour(ctx, largeProblem(30), algo.TourOptions{TimeLimit: algo.NO_TIME_LIMIT, CheckInterval: 16})
	require.NoError(t, err)
	assert.False(t, res.Optimal)
	assert.Equal(t, 16, res.Nodes)
}

func TestOptimizeTourDimensionMismatch(t *testing.T) {
	_, err := algo.OptimizeTour(context.Background(), algo.TourProblem{
		Costs:     [][]float64{{0, 1}, {1, 0}},
		Durations: []float64{0},
	}, algo.TourOptions{})
	assert.ErrorIs(t, err, algo.ErrDimensionMismatch)

	_, err = algo.OptimizeTour(context.Background(), algo.TourProblem{Costs: [][]float64{{0, 1}, {1}}}, algo.TourOptions{})
	assert.ErrorIs(t, err, algo.ErrDimensionMismatch)
}
