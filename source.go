package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"git.fiblab.net/sim/tourplan/store"
)

var ErrNoPath = errors.New("no input path")

// sources opens database connections on first use and keeps them for reloads.
type sources struct {
	mongoURI  string
	warehouse int64

	mu    sync.Mutex
	mongo *store.MongoStore
	pg    map[string]*store.PostgresStore
}

func newSources(mongoURI string, warehouse int64) *sources {
	return &sources{
		mongoURI:  mongoURI,
		warehouse: warehouse,
		pg:        make(map[string]*store.PostgresStore),
	}
}

func (s *sources) lazyMongo(ctx context.Context) (*store.MongoStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mongo == nil {
		if s.mongoURI == "" {
			return nil, errors.New("mongo uri is not set")
		}
		m, err := store.NewMongoStore(ctx, s.mongoURI)
		if err != nil {
			return nil, err
		}
		s.mongo = m
	}
	return s.mongo, nil
}

func (s *sources) lazyPostgres(ctx context.Context, dsn string) (*store.PostgresStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pg, ok := s.pg[dsn]; ok {
		return pg, nil
	}
	pg, err := store.NewPostgresStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s.pg[dsn] = pg
	return pg, nil
}

func (s *sources) loadNetwork(ctx context.Context, p *Path) (*store.NetworkDoc, error) {
	switch {
	case p == nil:
		return nil, fmt.Errorf("load network: %w", ErrNoPath)
	case p.File != "":
		return store.ReadNetworkFile(p.File)
	case p.IsPostgres():
		pg, err := s.lazyPostgres(ctx, p.DSN)
		if err != nil {
			return nil, err
		}
		return pg.LoadNetwork(ctx)
	default:
		m, err := s.lazyMongo(ctx)
		if err != nil {
			return nil, err
		}
		return m.LoadNetwork(ctx, p.GetDb(), p.GetColl())
	}
}

func (s *sources) loadQuery(ctx context.Context, p *Path) (*store.QueryDoc, error) {
	switch {
	case p == nil:
		return nil, fmt.Errorf("load query: %w", ErrNoPath)
	case p.File != "":
		return store.ReadQueryFile(p.File)
	case p.IsPostgres():
		pg, err := s.lazyPostgres(ctx, p.DSN)
		if err != nil {
			return nil, err
		}
		return pg.LoadQuery(ctx, s.warehouse)
	default:
		m, err := s.lazyMongo(ctx)
		if err != nil {
			return nil, err
		}
		return m.LoadQuery(ctx, p.GetDb(), p.GetColl())
	}
}

// saveNetwork writes doc to a JSON file or replaces a mongo collection.
func (s *sources) saveNetwork(ctx context.Context, p *Path, doc *store.NetworkDoc) error {
	switch {
	case p.File != "":
		return store.WriteFile(p.File, doc)
	case p.IsPostgres():
		return errors.New("saving a network to postgres is not supported")
	default:
		m, err := s.lazyMongo(ctx)
		if err != nil {
			return err
		}
		return m.SaveNetwork(ctx, p.GetDb(), p.GetColl(), doc)
	}
}

func (s *sources) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mongo != nil {
		s.mongo.Close(context.Background())
		s.mongo = nil
	}
	for dsn, pg := range s.pg {
		pg.Close()
		delete(s.pg, dsn)
	}
}
