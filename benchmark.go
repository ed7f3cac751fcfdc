package main

import (
	"context"
	"flag"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/tourplan/planner"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	benchmarkCount      = flag.Int("benchmark.count", 100, "the random tour count for benchmark")
	benchmarkDeliveries = flag.Int("benchmark.deliveries", 10, "the delivery count of each random tour")
	benchmarkGrid       = flag.Int("benchmark.grid", 20, "the side of the generated grid network when no network is given")
	benchmarkSeed       = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU        = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

// GridNetwork builds a side*side grid with two-way roads of random travel
// times between 30 and 150 seconds.
func GridNetwork(side int, seed int64) *planner.Network {
	e := rand.New(rand.NewSource(seed))
	id := func(x, y int) int64 { return int64(y*side + x) }
	its := make([]planner.Intersection, 0, side*side)
	roads := make([]planner.Road, 0, 4*side*side)
	addRoad := func(a, b int64, name string) {
		roads = append(roads,
			planner.Road{Origin: a, Destination: b, Time: float64(30 + e.Intn(121)), Name: name},
			planner.Road{Origin: b, Destination: a, Time: float64(30 + e.Intn(121)), Name: name},
		)
	}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			its = append(its, planner.Intersection{
				ID:       id(x, y),
				Position: geometry.Point{X: float64(x) * 100, Y: float64(y) * 100},
			})
			if x+1 < side {
				addRoad(id(x, y), id(x+1, y), "street "+strconv.Itoa(y))
			}
			if y+1 < side {
				addRoad(id(x, y), id(x, y+1), "avenue "+strconv.Itoa(x))
			}
		}
	}
	n, err := planner.NewNetwork(its, roads)
	if err != nil {
		log.Panicf("grid network: %v", err)
	}
	return n
}

// randomQueries draws count queries of k deliveries over the intersections of
// n, departures at 08:00 and one window out of three.
func randomQueries(n *planner.Network, count, k int, seed int64) []*planner.DeliveryQuery {
	e := rand.New(rand.NewSource(seed))
	ids := n.IntersectionIDs()
	departure := time.Date(2026, 1, 5, 8, 0, 0, 0, time.Local)
	qs := make([]*planner.DeliveryQuery, count)
	for i := range qs {
		q := &planner.DeliveryQuery{
			Warehouse: planner.Warehouse{Intersection: ids[e.Intn(len(ids))], Departure: departure},
		}
		for j := 0; j < k; j++ {
			d := planner.Delivery{
				Intersection: ids[e.Intn(len(ids))],
				Duration:     time.Duration(1+e.Intn(10)) * time.Minute,
			}
			if e.Intn(3) == 0 {
				d.WindowStart = lo.ToPtr(departure.Add(time.Duration(e.Intn(120)) * time.Minute))
			}
			q.Deliveries = append(q.Deliveries, d)
		}
		qs[i] = q
	}
	return qs
}

func runBenchmark(server *TourServer) {
	log.Logger.SetLevel(logrus.WarnLevel)
	qs := randomQueries(server.current().Network(), *benchmarkCount, *benchmarkDeliveries, *benchmarkSeed)

	// 开始benchmark
	start := time.Now()
	var wg sync.WaitGroup
	var success, optimal atomic.Int32
	run := func(q *planner.DeliveryQuery) {
		plan, err := server.Plan(context.Background(), q)
		if err != nil {
			log.Error("benchmark failed, err:", err)
			return
		}
		if plan.Status.HasTour() {
			success.Add(1)
		}
		if plan.Status == planner.StatusOptimal {
			optimal.Add(1)
		}
	}
	if *benchmarkCPU == 1 {
		for _, q := range qs {
			run(q)
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(len(qs))
		for _, q := range qs {
			go func(q *planner.DeliveryQuery) {
				defer wg.Done()
				run(q)
			}(q)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Warn(
		"benchmark finished", "\n",
		"count: ", len(qs), "\n",
		"deliveries: ", *benchmarkDeliveries, "\n",
		"time: ", timeCost, "\n",
		"avg: ", timeCost/time.Duration(max(len(qs), 1)), "\n",
		"success: ", success.Load(), "\n",
		"optimal: ", optimal.Load(), "\n",
	)
}
