package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the layout PostgresStore reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS intersections (
  id BIGINT PRIMARY KEY,
  x  DOUBLE PRECISION NOT NULL DEFAULT 0,
  y  DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS roads (
  id          BIGSERIAL PRIMARY KEY,
  origin      BIGINT NOT NULL REFERENCES intersections(id),
  destination BIGINT NOT NULL REFERENCES intersections(id),
  time_s      DOUBLE PRECISION NOT NULL CHECK (time_s >= 0),
  name        TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS warehouses (
  id           BIGSERIAL PRIMARY KEY,
  intersection BIGINT NOT NULL REFERENCES intersections(id),
  departure    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS deliveries (
  warehouse_id BIGINT NOT NULL REFERENCES warehouses(id),
  seq          INT NOT NULL,
  intersection BIGINT NOT NULL REFERENCES intersections(id),
  duration_s   DOUBLE PRECISION NOT NULL CHECK (duration_s >= 0),
  window_start TIMESTAMPTZ,
  PRIMARY KEY (warehouse_id, seq)
);
`

// PostgresStore reads networks and queries through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Migrate creates the tables when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadNetwork(ctx context.Context) (*NetworkDoc, error) {
	doc := &NetworkDoc{}
	rows, err := s.pool.Query(ctx, `SELECT id, x, y FROM intersections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query intersections: %w", err)
	}
	doc.Intersections, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (IntersectionDoc, error) {
		var it IntersectionDoc
		err := row.Scan(&it.ID, &it.X, &it.Y)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan intersections: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT origin, destination, time_s, name FROM roads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query roads: %w", err)
	}
	doc.Roads, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (RoadDoc, error) {
		var r RoadDoc
		err := row.Scan(&r.Origin, &r.Destination, &r.Time, &r.Name)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan roads: %w", err)
	}
	log.Infof("%d intersections and %d roads from postgres", len(doc.Intersections), len(doc.Roads))
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	return doc, nil
}

// LoadQuery reads the deliveries of one warehouse row. A zero id selects the
// warehouse with the latest departure.
func (s *PostgresStore) LoadQuery(ctx context.Context, warehouseID int64) (*QueryDoc, error) {
	doc := &QueryDoc{}
	var row pgx.Row
	if warehouseID == 0 {
		row = s.pool.QueryRow(ctx, `SELECT id, intersection, departure FROM warehouses ORDER BY departure DESC, id DESC LIMIT 1`)
	} else {
		row = s.pool.QueryRow(ctx, `SELECT id, intersection, departure FROM warehouses WHERE id = $1`, warehouseID)
	}
	if err := row.Scan(&warehouseID, &doc.Warehouse, &doc.Departure); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("warehouse %d: %w", warehouseID, ErrNoQuery)
		}
		return nil, fmt.Errorf("query warehouse: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT intersection, duration_s, window_start FROM deliveries WHERE warehouse_id = $1 ORDER BY seq`,
		warehouseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	doc.Deliveries, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (DeliveryDoc, error) {
		var d DeliveryDoc
		err := row.Scan(&d.Intersection, &d.Duration, &d.WindowStart)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan deliveries: %w", err)
	}
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return doc, nil
}

// SaveQuery inserts a warehouse row with its deliveries in one transaction
// and returns the new warehouse id.
func (s *PostgresStore) SaveQuery(ctx context.Context, doc *QueryDoc) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO warehouses (intersection, departure) VALUES ($1, $2) RETURNING id`,
			doc.Warehouse, doc.Departure,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert warehouse: %w", err)
		}
		batch := &pgx.Batch{}
		for i, d := range doc.Deliveries {
			batch.Queue(
				`INSERT INTO deliveries (warehouse_id, seq, intersection, duration_s, window_start) VALUES ($1, $2, $3, $4, $5)`,
				id, i, d.Intersection, d.Duration, d.WindowStart,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("save query: %w", err)
	}
	return id, nil
}
