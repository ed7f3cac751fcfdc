package planner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	// 在时限内穷尽搜索空间
	StatusOptimal Status = "optimal"
	// 超时，返回当前最优解
	StatusTimeout Status = "timeout"
	// 超时且没有找到任何解
	StatusTimeoutNoTour Status = "timeout_no_tour"
	// 不存在满足条件的路线
	StatusInfeasible Status = "infeasible"
)

// Message is the user-facing explanation of a status.
func (s Status) Message() string {
	switch s {
	case StatusOptimal:
		return "optimal tour computed"
	case StatusTimeout:
		return "time limit reached, the tour may not be optimal"
	case StatusTimeoutNoTour:
		return "no tour was found within the time limit"
	case StatusInfeasible:
		return "no feasible tour exists"
	default:
		return string(s)
	}
}

func (s Status) HasTour() bool {
	return s == StatusOptimal || s == StatusTimeout
}

func statusOf(res TourResult) Status {
	switch {
	case res.Found && res.Optimal:
		return StatusOptimal
	case res.Found:
		return StatusTimeout
	case res.Optimal:
		return StatusInfeasible
	default:
		return StatusTimeoutNoTour
	}
}

// Observer receives one call per optimizer run.
type Observer interface {
	ObserveTour(status string, elapsed time.Duration, nodes int)
}

type Config struct {
	// 分支定界搜索时限，NoTimeLimit表示不限制
	TimeLimit time.Duration
	Observer  Observer
}

// Planner runs the whole pipeline for delivery queries over one network.
// It keeps no state between calls.
type Planner struct {
	network *Network
	config  Config
}

func New(network *Network, config Config) *Planner {
	return &Planner{network: network, config: config}
}

func (p *Planner) Network() *Network {
	return p.network
}

// Plan is the outcome of one computation. Route and Itinerary are nil unless
// Status.HasTour().
type Plan struct {
	Query     *DeliveryQuery
	Matrix    *DistanceMatrix
	Result    TourResult
	Status    Status
	Route     *Route
	Itinerary *Itinerary
}

// Plan validates q and runs distance matrix, tour optimization, route
// reconstruction and itinerary formatting in sequence. Only invalid input and
// internal inconsistencies are returned as errors.
func (p *Planner) Plan(ctx context.Context, q *DeliveryQuery) (plan *Plan, err error) {
	if err := q.Validate(p.network); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	// panic recover
	defer func() {
		if e := recover(); e != nil {
			plan = nil
			if pe, ok := e.(error); ok && errors.Is(pe, ErrBrokenChain) {
				err = fmt.Errorf("plan: %w", pe)
			} else {
				err = fmt.Errorf("plan: panic: %v", e)
			}
			log.Errorln(err)
		}
	}()

	plan = &Plan{Query: q}
	plan.Matrix = ComputeDistanceMatrix(p.network, q.PassagePoints())
	plan.Result = OptimizeTour(ctx, plan.Matrix, q, p.config.TimeLimit)
	plan.Status = statusOf(plan.Result)
	if p.config.Observer != nil {
		p.config.Observer.ObserveTour(string(plan.Status), plan.Result.Elapsed, plan.Result.Nodes)
	}
	if !plan.Status.HasTour() {
		log.Infof("plan: %s (deliveries=%d, nodes=%d)", plan.Status.Message(), len(q.Deliveries), plan.Result.Nodes)
		return plan, nil
	}
	if plan.Status == StatusTimeout {
		log.Infof("plan: %s (deliveries=%d, nodes=%d)", plan.Status.Message(), len(q.Deliveries), plan.Result.Nodes)
	}
	plan.Route = ReconstructRoute(plan.Result.Tour, p.network)
	plan.Itinerary = FormatItinerary(plan.Route, q)
	return plan, nil
}
