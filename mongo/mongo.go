package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNoDocuments = mongo.ErrNoDocuments

// Connect opens the database and ensures the startup indexes.
func Connect(ctx context.Context, uri string, dbname string) (*mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbname)

	_, err = db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"email": 1}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, err
	}

	_, err = db.Collection("refreshTokens").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"token": 1}},
		{Keys: bson.M{"user": 1}},
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}
