package planner_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/tourplan/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var departure = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func at(h, m, s int) time.Time {
	return time.Date(2026, 10, 16, h, m, s, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

// triangle is the three-intersection network of the reference scenario.
func triangle(t *testing.T) *planner.Network {
	t.Helper()
	n, err := planner.NewNetwork(
		[]planner.Intersection{
			{ID: 0, Position: geometry.Point{X: 0, Y: 0}},
			{ID: 1, Position: geometry.Point{X: 1, Y: 0}},
			{ID: 2, Position: geometry.Point{X: 0, Y: 1}},
		},
		[]planner.Road{
			{Origin: 0, Destination: 1, Time: 300, Name: "Rue A"},
			{Origin: 1, Destination: 2, Time: 300, Name: "Rue B"},
			{Origin: 2, Destination: 0, Time: 300, Name: "Rue C"},
			{Origin: 0, Destination: 2, Time: 500, Name: "Rue D"},
			{Origin: 2, Destination: 1, Time: 500, Name: "Rue E"},
			{Origin: 1, Destination: 0, Time: 300, Name: "Rue F"},
		},
	)
	require.NoError(t, err)
	return n
}

func referenceQuery() *planner.DeliveryQuery {
	return &planner.DeliveryQuery{
		Warehouse: planner.Warehouse{Intersection: 0, Departure: departure},
		Deliveries: []planner.Delivery{
			{Intersection: 1, Duration: 300 * time.Second},
			{Intersection: 2, Duration: 600 * time.Second, WindowStart: ptr(at(8, 20, 0))},
		},
	}
}

func TestPlanReferenceScenario(t *testing.T) {
	p := planner.New(triangle(t), planner.Config{TimeLimit: planner.NoTimeLimit})
	plan, err := p.Plan(context.Background(), referenceQuery())
	require.NoError(t, err)

	assert.Equal(t, planner.StatusOptimal, plan.Status)
	assert.True(t, plan.Result.Found)
	assert.True(t, plan.Result.Optimal)
	assert.Equal(t, []int{0, 1, 2}, plan.Result.Tour.Order)
	assert.Equal(t, []int64{0, 1, 2}, plan.Result.Tour.Stops())
	assert.Equal(t, 900.0, plan.Result.Tour.Travel)
	assert.Equal(t, 300.0, plan.Result.Tour.Wait)

	it := plan.Itinerary
	require.NotNil(t, it)
	require.Len(t, it.Stops, 3)

	s1 := it.Stops[0]
	assert.Equal(t, planner.StopDelivery, s1.Kind)
	assert.Equal(t, int64(1), s1.Intersection)
	assert.Equal(t, at(8, 5, 0), s1.Arrival)
	assert.Equal(t, time.Duration(0), s1.Wait)
	assert.Equal(t, at(8, 10, 0), s1.Departure)

	s2 := it.Stops[1]
	assert.Equal(t, int64(2), s2.Intersection)
	assert.Equal(t, at(8, 15, 0), s2.Arrival)
	assert.Equal(t, 5*time.Minute, s2.Wait)
	assert.Equal(t, at(8, 20, 0), s2.ServiceStart)
	assert.Equal(t, at(8, 30, 0), s2.Departure)

	back := it.Stops[2]
	assert.Equal(t, planner.StopReturn, back.Kind)
	assert.Equal(t, int64(0), back.Intersection)
	assert.Equal(t, at(8, 35, 0), back.Arrival)
	assert.Equal(t, at(8, 35, 0), it.Return())
	assert.Equal(t, 15*time.Minute, it.Travel)
	assert.Equal(t, 5*time.Minute, it.Wait)

	assert.Equal(t, []string{"Rue A"}, roadNames(nil, s1.Roads))
	assert.Equal(t, []string{"Rue B"}, roadNames(nil, s2.Roads))
	assert.Equal(t, []string{"Rue C"}, roadNames(nil, back.Roads))
}

func roadNames(dst []string, roads []planner.Road) []string {
	for _, r := range roads {
		dst = append(dst, r.Name)
	}
	return dst
}

func TestPlanInvalidQuery(t *testing.T) {
	p := planner.New(triangle(t), planner.Config{TimeLimit: planner.NoTimeLimit})

	q := referenceQuery()
	q.Deliveries[0].Intersection = 42
	_, err := p.Plan(context.Background(), q)
	assert.ErrorIs(t, err, planner.ErrUnknownIntersection)

	q = referenceQuery()
	q.Deliveries[1].Duration = -time.Second
	_, err = p.Plan(context.Background(), q)
	assert.ErrorIs(t, err, planner.ErrNegativeDuration)

	q = referenceQuery()
	q.Warehouse.Departure = time.Time{}
	_, err = p.Plan(context.Background(), q)
	assert.ErrorIs(t, err, planner.ErrNoDeparture)
}

func TestPlanUnreachableDelivery(t *testing.T) {
	n, err := planner.NewNetwork(
		[]planner.Intersection{{ID: 0}, {ID: 1}, {ID: 2}},
		[]planner.Road{
			{Origin: 0, Destination: 1, Time: 10, Name: "a"},
			{Origin: 1, Destination: 0, Time: 10, Name: "b"},
			{Origin: 2, Destination: 0, Time: 10, Name: "c"},
		},
	)
	require.NoError(t, err)
	q := &planner.DeliveryQuery{
		Warehouse:  planner.Warehouse{Intersection: 0, Departure: departure},
		Deliveries: []planner.Delivery{{Intersection: 1}, {Intersection: 2}},
	}

	plan, err := planner.New(n, planner.Config{TimeLimit: planner.NoTimeLimit}).Plan(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, planner.StatusInfeasible, plan.Status)
	assert.False(t, plan.Result.Found)
	assert.Nil(t, plan.Route)
	assert.Nil(t, plan.Itinerary)
}

func TestPlanNoDeliveries(t *testing.T) {
	q := &planner.DeliveryQuery{Warehouse: planner.Warehouse{Intersection: 2, Departure: departure}}
	plan, err := planner.New(triangle(t), planner.Config{TimeLimit: 0}).Plan(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, planner.StatusOptimal, plan.Status)
	assert.Equal(t, []int{0}, plan.Result.Tour.Order)
	require.Len(t, plan.Itinerary.Stops, 1)
	assert.Equal(t, planner.StopReturn, plan.Itinerary.Stops[0].Kind)
	assert.Equal(t, departure, plan.Itinerary.Return())
	assert.Empty(t, plan.Itinerary.Stops[0].Roads)
}

func TestPlanSharedIntersection(t *testing.T) {
	q := &planner.DeliveryQuery{
		Warehouse: planner.Warehouse{Intersection: 0, Departure: departure},
		Deliveries: []planner.Delivery{
			{Intersection: 1, Duration: time.Minute},
			{Intersection: 1, Duration: 2 * time.Minute, WindowStart: ptr(at(8, 30, 0))},
		},
	}
	plan, err := planner.New(triangle(t), planner.Config{TimeLimit: planner.NoTimeLimit}).Plan(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan.Matrix.At(1, 2))
	assert.Equal(t, 0.0, plan.Matrix.At(2, 1))
	assert.Equal(t, []int{0, 1, 2}, plan.Result.Tour.Order)

	stops := plan.Itinerary.Stops
	require.Len(t, stops, 3)
	assert.Empty(t, stops[1].Roads)
	assert.Equal(t, at(8, 6, 0), stops[1].Arrival)
	assert.Equal(t, 24*time.Minute, stops[1].Wait)
	assert.Equal(t, at(8, 32, 0), stops[1].Departure)
}

type recorder struct {
	statuses []string
}

func (r *recorder) ObserveTour(status string, _ time.Duration, _ int) {
	r.statuses = append(r.statuses, status)
}

// grid builds a w*h grid with random travel times in both directions.
func grid(t *testing.T, w, h int, seed int64) *planner.Network {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	var its []planner.Intersection
	var roads []planner.Road
	id := func(x, y int) int64 { return int64(y*w + x) }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			its = append(its, planner.Intersection{ID: id(x, y), Position: geometry.Point{X: float64(x), Y: float64(y)}})
			if x+1 < w {
				roads = append(roads,
					planner.Road{Origin: id(x, y), Destination: id(x+1, y), Time: float64(30 + r.Intn(120)), Name: "h"},
					planner.Road{Origin: id(x+1, y), Destination: id(x, y), Time: float64(30 + r.Intn(120)), Name: "h"},
				)
			}
			if y+1 < h {
				roads = append(roads,
					planner.Road{Origin: id(x, y), Destination: id(x, y+1), Time: float64(30 + r.Intn(120)), Name: "v"},
					planner.Road{Origin: id(x, y+1), Destination: id(x, y), Time: float64(30 + r.Intn(120)), Name: "v"},
				)
			}
		}
	}
	n, err := planner.NewNetwork(its, roads)
	require.NoError(t, err)
	return n
}

func TestPlanRoadTimesMatchMatrix(t *testing.T) {
	n := grid(t, 6, 6, 3)
	q := &planner.DeliveryQuery{
		Warehouse: planner.Warehouse{Intersection: 0, Departure: departure},
		Deliveries: []planner.Delivery{
			{Intersection: 35, Duration: time.Minute},
			{Intersection: 5, Duration: time.Minute},
			{Intersection: 17, Duration: time.Minute, WindowStart: ptr(at(8, 40, 0))},
			{Intersection: 30, Duration: time.Minute},
			{Intersection: 22, Duration: time.Minute},
		},
	}
	rec := &recorder{}
	plan, err := planner.New(n, planner.Config{TimeLimit: planner.NoTimeLimit, Observer: rec}).Plan(context.Background(), q)
	require.NoError(t, err)
	require.True(t, plan.Status.HasTour())
	assert.Equal(t, []string{"optimal"}, rec.statuses)

	order := append(append([]int(nil), plan.Result.Tour.Order...), 0)
	require.Len(t, plan.Route.Legs, len(order)-1)
	for k, leg := range plan.Route.Legs {
		assert.Equal(t, plan.Matrix.At(order[k], order[k+1]), leg.Time())
		// 道路首尾相接
		cur := leg.From
		for _, r := range leg.Roads {
			assert.Equal(t, cur, r.Origin)
			cur = r.Destination
		}
		assert.Equal(t, leg.Intersection, cur)
	}
	assert.Equal(t, plan.Result.Tour.Travel, plan.Route.Time())
}

func TestPlanTimeout(t *testing.T) {
	n := grid(t, 8, 8, 11)
	q := &planner.DeliveryQuery{Warehouse: planner.Warehouse{Intersection: 0, Departure: departure}}
	for i := int64(1); i < 64; i += 2 {
		q.Deliveries = append(q.Deliveries, planner.Delivery{Intersection: i, Duration: time.Minute})
	}
	rec := &recorder{}
	plan, err := planner.New(n, planner.Config{TimeLimit: 0, Observer: rec}).Plan(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, plan.Result.Optimal)
	assert.Equal(t, planner.StatusTimeout, plan.Status)
	assert.Equal(t, []string{"timeout"}, rec.statuses)
	require.NotNil(t, plan.Itinerary)
	assert.Len(t, plan.Itinerary.Stops, len(q.Deliveries)+1)
}
