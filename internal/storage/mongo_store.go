package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/meetpoint/internal/models"
)

// MongoStore persists rooms as documents keyed by code, matching the shape
// the data has in memory.
type MongoStore struct {
	rooms *mongo.Collection
}

// NewMongoStore connects, pings, and ensures the unique code index.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: mongo connect: %v", ErrPersistence, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: mongo ping: %v", ErrPersistence, err)
	}

	rooms := client.Database(database).Collection("rooms")
	_, err = rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ensure index: %v", ErrPersistence, err)
	}
	return &MongoStore{rooms: rooms}, nil
}

func (m *MongoStore) LoadRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := m.rooms.FindOne(ctx, bson.M{"code": code}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load room %s: %v", ErrPersistence, code, err)
	}
	return &room, nil
}

func (m *MongoStore) SaveRoom(ctx context.Context, room *models.Room) error {
	_, err := m.rooms.ReplaceOne(ctx, bson.M{"code": room.Code}, room, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: save room %s: %v", ErrPersistence, room.Code, err)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.rooms.Database().Client().Disconnect(ctx)
}
