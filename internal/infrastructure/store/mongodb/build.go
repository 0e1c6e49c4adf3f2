package mongodb

import (
	"context"
	"errors"
	"log"
	"time"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
	"greenpt/internal/infrastructure/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoBuildRepo struct {
	buildsCol *mongo.Collection
}

func NewMongoBuildRepo(db *mongo.Database) repository.BuildRepository {
	col := db.Collection("builds")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "project_slug", Value: 1}}},
	})

	return &MongoBuildRepo{
		buildsCol: col,
	}
}

func (r *MongoBuildRepo) Create(ctx context.Context, build *entity.Build) error {
	metrics.IncBuildsCreated()

	build.CreatedAt = time.Now()
	build.UpdatedAt = time.Now()
	_, err := r.buildsCol.InsertOne(ctx, build)
	if err != nil {
		metrics.IncError("mongo_build_repo", "create_error")
		return err
	}
	return nil
}

func (r *MongoBuildRepo) GetByID(ctx context.Context, id string) (*entity.Build, error) {
	metrics.IncStoreOp("get")

	var build entity.Build
	err := r.buildsCol.FindOne(ctx, bson.M{"id": id}).Decode(&build)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.IncError("mongo_build_repo", "get_error")
		return nil, err
	}
	return &build, nil
}

func (r *MongoBuildRepo) List(ctx context.Context) ([]*entity.Build, error) {
	return r.find(ctx, bson.D{})
}

func (r *MongoBuildRepo) ListByProject(ctx context.Context, slug string) ([]*entity.Build, error) {
	return r.find(ctx, bson.M{"project_slug": slug})
}

func (r *MongoBuildRepo) ListByStatus(ctx context.Context, status entity.BuildStatus) ([]*entity.Build, error) {
	return r.find(ctx, bson.M{"status": status})
}

func (r *MongoBuildRepo) find(ctx context.Context, filter interface{}) ([]*entity.Build, error) {
	metrics.IncStoreOp("list")

	cur, err := r.buildsCol.Find(ctx, filter)
	if err != nil {
		metrics.IncError("mongo_build_repo", "list_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var builds []*entity.Build
	for cur.Next(ctx) {
		var b entity.Build
		if err := cur.Decode(&b); err != nil {
			metrics.IncError("mongo_build_repo", "list_decode_error")
			return nil, err
		}
		builds = append(builds, &b)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_build_repo", "list_cursor_error")
	}
	return builds, cur.Err()
}

func (r *MongoBuildRepo) Update(ctx context.Context, build *entity.Build) error {
	metrics.IncStoreOp("put")

	build.UpdatedAt = time.Now()
	res, err := r.buildsCol.ReplaceOne(ctx, bson.M{"id": build.ID}, build)
	if err != nil {
		metrics.IncError("mongo_build_repo", "update_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ClaimPending — CAS pending → running, чтобы две копии воркера
// не взяли одну сборку и не перемешали записи в её директории.
func (r *MongoBuildRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	metrics.IncStoreOp("put")

	filter := bson.M{"id": id, "status": entity.BuildStatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":     entity.BuildStatusRunning,
			"updated_at": time.Now(),
		},
	}
	res, err := r.buildsCol.UpdateOne(ctx, filter, update)
	if err != nil {
		metrics.IncError("mongo_build_repo", "claim_error")
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoBuildRepo) UpdateStatus(ctx context.Context, id string, status entity.BuildStatus) error {
	metrics.IncStoreOp("put")

	filter := bson.M{"id": id}
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	}
	res, err := r.buildsCol.UpdateOne(ctx, filter, update)
	if err != nil {
		metrics.IncError("mongo_build_repo", "update_status_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoBuildRepo) Delete(ctx context.Context, id string) error {
	metrics.IncStoreOp("delete")

	res, err := r.buildsCol.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		metrics.IncError("mongo_build_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoBuildRepo) CountByStatus(ctx context.Context, status entity.BuildStatus) (int, error) {
	metrics.IncStoreOp("count")

	count, err := r.buildsCol.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		metrics.IncError("mongo_build_repo", "count_by_status_error")
		return 0, err
	}
	return int(count), nil
}
