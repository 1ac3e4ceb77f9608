// Package mongo keeps each ledger collection in a MongoDB collection of the
// same name. Atomic units use multi-document transactions, so the server
// must run as a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HAB39/3laNota/internal/store"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	view
}

func New(ctx context.Context, uri string, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(database)
	return &Store{client: client, db: db, view: view{db: db}}, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(store.KV) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(view{db: s.db, session: session})
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// view runs KV operations, inside the session's transaction when session
// is set.
type view struct {
	db      *mongo.Database
	session mongo.Session
}

func (v view) bind(ctx context.Context) context.Context {
	if v.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, v.session)
}

func (v view) collection(name string) (*mongo.Collection, error) {
	for _, known := range store.Collections {
		if known == name {
			return v.db.Collection(name), nil
		}
	}
	return nil, fmt.Errorf("unknown collection %q", name)
}

func (v view) Put(ctx context.Context, collection string, id string, doc []byte) error {
	coll, err := v.collection(collection)
	if err != nil {
		return err
	}
	record, err := toBSON(id, doc)
	if err != nil {
		return err
	}
	_, err = coll.ReplaceOne(v.bind(ctx), bson.M{"_id": id}, record, options.Replace().SetUpsert(true))
	return err
}

func (v view) Get(ctx context.Context, collection string, id string) ([]byte, error) {
	coll, err := v.collection(collection)
	if err != nil {
		return nil, err
	}
	var record bson.D
	err = coll.FindOne(v.bind(ctx), bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return fromBSON(record)
}

func (v view) List(ctx context.Context, collection string) ([][]byte, error) {
	coll, err := v.collection(collection)
	if err != nil {
		return nil, err
	}
	ctx = v.bind(ctx)
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([][]byte, 0, 64)
	for cursor.Next(ctx) {
		var record bson.D
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		doc, err := fromBSON(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (v view) Delete(ctx context.Context, collection string, id string) error {
	coll, err := v.collection(collection)
	if err != nil {
		return err
	}
	_, err = coll.DeleteOne(v.bind(ctx), bson.M{"_id": id})
	return err
}

func (v view) Clear(ctx context.Context, collection string) error {
	coll, err := v.collection(collection)
	if err != nil {
		return err
	}
	_, err = coll.DeleteMany(v.bind(ctx), bson.D{})
	return err
}

// toBSON turns a JSON document into a BSON document keyed by id.
func toBSON(id string, doc []byte) (bson.D, error) {
	var fields bson.D
	if err := bson.UnmarshalExtJSON(doc, false, &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	record := make(bson.D, 0, len(fields)+1)
	record = append(record, bson.E{Key: "_id", Value: id})
	for _, field := range fields {
		if field.Key == "_id" {
			continue
		}
		record = append(record, field)
	}
	return record, nil
}

func fromBSON(record bson.D) ([]byte, error) {
	fields := make(bson.D, 0, len(record))
	for _, field := range record {
		if field.Key == "_id" {
			continue
		}
		fields = append(fields, field)
	}
	return bson.MarshalExtJSON(fields, false, false)
}
