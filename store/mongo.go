package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNoQuery = errors.New("no query document")

const (
	CLASS_INTERSECTION = "intersection"
	CLASS_ROAD         = "road"
	CLASS_QUERY        = "query"

	mongoTimeout = 30 * time.Second
)

// 集合中每条记录的格式: {class: ..., data: {...}}
type mongoRecord[T any] struct {
	Class string `bson:"class"`
	Data  T      `bson:"data"`
}

// MongoStore reads networks and queries from collections of class-tagged
// records.
type MongoStore struct {
	client *mongo.Client
}

func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func findClass[T any](ctx context.Context, coll *mongo.Collection, class string) ([]T, error) {
	cur, err := coll.Find(ctx, bson.M{"class": class}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find %s in %s: %w", class, coll.Name(), err)
	}
	var records []mongoRecord[T]
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode %s in %s: %w", class, coll.Name(), err)
	}
	return lo.Map(records, func(r mongoRecord[T], _ int) T { return r.Data }), nil
}

// LoadNetwork reads all intersection and road records of db.coll.
func (s *MongoStore) LoadNetwork(ctx context.Context, db, coll string) (*NetworkDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	log.Infof("get network from mongo %s.%s", db, coll)
	c := s.client.Database(db).Collection(coll)
	its, err := findClass[IntersectionDoc](ctx, c, CLASS_INTERSECTION)
	if err != nil {
		return nil, err
	}
	roads, err := findClass[RoadDoc](ctx, c, CLASS_ROAD)
	if err != nil {
		return nil, err
	}
	log.Infof("%d intersections and %d roads", len(its), len(roads))
	doc := &NetworkDoc{Intersections: its, Roads: roads}
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("network %s.%s: %w", db, coll, err)
	}
	return doc, nil
}

// LoadQuery reads the most recently inserted query record of db.coll.
func (s *MongoStore) LoadQuery(ctx context.Context, db, coll string) (*QueryDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	log.Infof("get query from mongo %s.%s", db, coll)
	c := s.client.Database(db).Collection(coll)
	var record mongoRecord[QueryDoc]
	err := c.FindOne(ctx, bson.M{"class": CLASS_QUERY},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("query %s.%s: %w", db, coll, ErrNoQuery)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", db, coll, err)
	}
	if err := Validate(&record.Data); err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", db, coll, err)
	}
	return &record.Data, nil
}

// SaveNetwork replaces the content of db.coll with the records of doc.
func (s *MongoStore) SaveNetwork(ctx context.Context, db, coll string, doc *NetworkDoc) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	c := s.client.Database(db).Collection(coll)
	if _, err := c.DeleteMany(ctx, bson.M{"class": bson.M{"$in": bson.A{CLASS_INTERSECTION, CLASS_ROAD}}}); err != nil {
		return fmt.Errorf("clear network %s.%s: %w", db, coll, err)
	}
	records := make([]any, 0, len(doc.Intersections)+len(doc.Roads))
	for _, it := range doc.Intersections {
		records = append(records, mongoRecord[IntersectionDoc]{Class: CLASS_INTERSECTION, Data: it})
	}
	for _, r := range doc.Roads {
		records = append(records, mongoRecord[RoadDoc]{Class: CLASS_ROAD, Data: r})
	}
	if len(records) == 0 {
		return nil
	}
	if _, err := c.InsertMany(ctx, records); err != nil {
		return fmt.Errorf("insert network %s.%s: %w", db, coll, err)
	}
	return nil
}

// SaveQuery appends a query record, which becomes the one LoadQuery returns.
func (s *MongoStore) SaveQuery(ctx context.Context, db, coll string, doc *QueryDoc) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	c := s.client.Database(db).Collection(coll)
	if _, err := c.InsertOne(ctx, mongoRecord[QueryDoc]{Class: CLASS_QUERY, Data: *doc}); err != nil {
		return fmt.Errorf("insert query %s.%s: %w", db, coll, err)
	}
	return nil
}
