// Package store persists users, appointments and messages in MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	ErrNotFound     = errors.New("store: document not found")
	ErrDuplicateKey = errors.New("store: duplicate key")
)

const (
	usersCollection        = "users"
	appointmentsCollection = "appointments"
	messagesCollection     = "messages"
)

// Store owns the Mongo client. Construct it once at startup with Connect and
// release it with Close.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Users        *UserRepo
	Appointments *AppointmentRepo
	Messages     *MessageRepo
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := New(client.Database(database))
	s.client = client
	return s, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		db:           db,
		Users:        &UserRepo{coll: db.Collection(usersCollection)},
		Appointments: &AppointmentRepo{coll: db.Collection(appointmentsCollection)},
		Messages:     &MessageRepo{coll: db.Collection(messagesCollection)},
	}
}

// EnsureIndexes creates the unique email index and the lookup indexes used by
// the doctor directory and the newest-first listings.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "doctorDepartment", Value: 1},
				{Key: "fullNameCI", Value: 1},
			},
			Options: options.Index().SetName("doctor_lookup"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	for _, name := range []string{appointmentsCollection, messagesCollection} {
		_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		})
		if err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
