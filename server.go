package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"git.fiblab.net/sim/tourplan/metrics"
	"git.fiblab.net/sim/tourplan/planner"
	"git.fiblab.net/sim/tourplan/report"
	"git.fiblab.net/sim/tourplan/store"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// Publisher receives every computed plan that carries a tour.
type Publisher interface {
	Publish(warehouse int64, msg any) error
}

type TourServer struct {
	// 读多写少，重新加载路网时整体替换planner
	mu      *xsync.RBMutex
	planner *planner.Planner

	networkPath *Path
	src         *sources
	config      planner.Config
	metrics     *metrics.Collector
	publisher   Publisher

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

// NewTourServer builds the server around an already loaded network.
// networkPath and src are only used by reloads and may be nil.
func NewTourServer(
	network *planner.Network,
	networkPath *Path, src *sources,
	config planner.Config,
	m *metrics.Collector, pub Publisher,
) *TourServer {
	if m != nil {
		config.Observer = m
		m.SetNetwork(network.IntersectionCount(), network.RoadCount())
	}
	return &TourServer{
		mu:          xsync.NewRBMutex(),
		planner:     planner.New(network, config),
		networkPath: networkPath,
		src:         src,
		config:      config,
		metrics:     m,
		publisher:   pub,
		ok:          true, cond: sync.NewCond(&sync.Mutex{}),
	}
}

func (s *TourServer) current() *planner.Planner {
	t := s.mu.RLock()
	defer s.mu.RUnlock(t)
	return s.planner
}

// 暂停-恢复机制
func (s *TourServer) waitResume() {
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()
}

// Plan computes one tour and publishes it when it has one.
func (s *TourServer) Plan(ctx context.Context, q *planner.DeliveryQuery) (*planner.Plan, error) {
	s.waitResume()
	plan, err := s.current().Plan(ctx, q)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PlanErrorInc()
		}
		return nil, err
	}
	if s.publisher != nil && plan.Status.HasTour() {
		if err := s.publisher.Publish(q.Warehouse.Intersection, report.NewPlanDoc(plan)); err != nil {
			log.Warnf("publish itinerary: %v", err)
		}
	}
	return plan, nil
}

// Reload reads the network again from its path and swaps it in. Computations
// already running keep the previous network.
func (s *TourServer) Reload(ctx context.Context) (*planner.Network, error) {
	if s.networkPath == nil || s.src == nil {
		return nil, fmt.Errorf("reload: %w", ErrNoPath)
	}
	doc, err := s.src.loadNetwork(ctx, s.networkPath)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	n, err := doc.Network()
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	p := planner.New(n, s.config)
	s.mu.Lock()
	s.planner = p
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetNetwork(n.IntersectionCount(), n.RoadCount())
	}
	log.Infof("network reloaded from %s: %d intersections, %d roads", s.networkPath, n.IntersectionCount(), n.RoadCount())
	return n, nil
}

// 暂停服务
func (s *TourServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复服务
func (s *TourServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭服务
func (s *TourServer) Close() {
	if s.src != nil {
		s.src.Close()
	}
}

// Handler wires the HTTP endpoints.
func (s *TourServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/tours", s.handleTours)
	mux.HandleFunc("/v1/network", s.handleNetwork)
	mux.HandleFunc("/v1/network/reload", s.handleReload)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return requestIDMiddleware(loggingMiddleware(mux))
}

func (s *TourServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *TourServer) handleTours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()
	var doc store.QueryDoc
	if err := store.Decode(r.Body, &doc); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q, err := doc.Query()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := s.Plan(r.Context(), q)
	if err != nil {
		status := http.StatusInternalServerError
		if isInvalidQuery(err) {
			status = http.StatusBadRequest
		}
		writeError(w, r, status, err.Error())
		return
	}

	switch r.URL.Query().Get("format") {
	case "text":
		if plan.Itinerary == nil {
			writeError(w, r, http.StatusUnprocessableEntity, plan.Status.Message())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		plan.Itinerary.WriteTo(w)
	case "xlsx":
		if plan.Itinerary == nil {
			writeError(w, r, http.StatusUnprocessableEntity, plan.Status.Message())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="itinerary.xlsx"`)
		if err := report.WriteXLSX(w, plan); err != nil {
			log.Errorf("write xlsx: %v", err)
		}
	default:
		out := report.NewPlanDoc(plan)
		out.ID = requestID(r.Context())
		writeJSON(w, r, http.StatusOK, out)
	}
}

func isInvalidQuery(err error) bool {
	return errors.Is(err, planner.ErrUnknownIntersection) ||
		errors.Is(err, planner.ErrNegativeDuration) ||
		errors.Is(err, planner.ErrNoDeparture)
}

func (s *TourServer) handleNetwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, r, http.StatusOK, store.NewNetworkDoc(s.current().Network()))
}

func (s *TourServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n, err := s.Reload(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoPath) {
			status = http.StatusConflict
		}
		writeError(w, r, status, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{
		"intersections": n.IntersectionCount(),
		"roads":         n.RoadCount(),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		log.WithFields(logrus.Fields{
			"request_id": requestID(r.Context()),
		}).Infof("method=%s path=%s status=%d bytes=%d dur=%v",
			r.Method, r.URL.RequestURI(), sw.status, sw.bytes, time.Since(start))
	})
}

// requestIDMiddleware keeps the caller's request id or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
