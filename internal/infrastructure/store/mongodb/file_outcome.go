package mongodb

import (
	"context"
	"log"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
	"greenpt/internal/infrastructure/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoFileOutcomeRepo struct {
	col *mongo.Collection
}

func NewMongoFileOutcomeRepo(db *mongo.Database) repository.FileOutcomeRepository {
	col := db.Collection("file_outcomes")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "build_id", Value: 1}}},
	})

	return &MongoFileOutcomeRepo{
		col: col,
	}
}

func (r *MongoFileOutcomeRepo) SaveOutcomes(ctx context.Context, outcomes []*entity.FileOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	metrics.IncStoreOp("put")

	docs := make([]interface{}, len(outcomes))
	for i, o := range outcomes {
		docs[i] = o
	}

	_, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		metrics.IncError("mongo_outcome_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoFileOutcomeRepo) GetByBuildID(ctx context.Context, buildID string) ([]*entity.FileOutcome, error) {
	metrics.IncStoreOp("get")

	cur, err := r.col.Find(ctx, bson.M{"build_id": buildID})
	if err != nil {
		metrics.IncError("mongo_outcome_repo", "get_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var outcomes []*entity.FileOutcome
	for cur.Next(ctx) {
		var o entity.FileOutcome
		if err := cur.Decode(&o); err != nil {
			metrics.IncError("mongo_outcome_repo", "decode_error")
			return nil, err
		}
		outcomes = append(outcomes, &o)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_outcome_repo", "cursor_error")
	}
	return outcomes, cur.Err()
}

func (r *MongoFileOutcomeRepo) DeleteByBuildID(ctx context.Context, buildID string) error {
	metrics.IncStoreOp("delete")

	_, err := r.col.DeleteMany(ctx, bson.M{"build_id": buildID})
	if err != nil {
		metrics.IncError("mongo_outcome_repo", "delete_error")
		return err
	}
	return nil
}
