package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"performance-service/internal/models"
)

// ResultQuery selects quiz results. Zero values mean "no constraint";
// results come back newest first unless Ascending is set.
type ResultQuery struct {
	UserID    string
	Topic     string
	Since     time.Time
	Skip      int64
	Limit     int64
	Ascending bool
	// Unapplied restricts to results not yet folded into the student record.
	Unapplied bool
}

func (q ResultQuery) filter() bson.M {
	f := bson.M{}
	if q.UserID != "" {
		f["user_id"] = q.UserID
	}
	if q.Topic != "" {
		f["topic"] = q.Topic
	}
	if !q.Since.IsZero() {
		f["completed_at"] = bson.M{"$gte": q.Since}
	}
	if q.Unapplied {
		f["applied"] = bson.M{"$ne": true}
	}
	return f
}

type ResultRepository struct {
	Col *mongo.Collection
}

func NewResultRepository(db *mongo.Database) *ResultRepository {
	return &ResultRepository{Col: db.Collection("quiz_results")}
}

func (r *ResultRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "completed_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "topic", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "quiz_title", Value: 1}, {Key: "topic", Value: 1}}},
		{Keys: bson.D{{Key: "completed_at", Value: -1}, {Key: "topic", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "applied", Value: 1}, {Key: "completed_at", Value: 1}}},
	})
	return err
}

func (r *ResultRepository) Insert(ctx context.Context, result *models.QuizResult) error {
	_, err := r.Col.InsertOne(ctx, result)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert quiz result: %w", err)
	}
	return nil
}

func (r *ResultRepository) CountAttempts(ctx context.Context, userID, quizTitle, topic string) (int64, error) {
	return r.Col.CountDocuments(ctx, bson.M{"user_id": userID, "quiz_title": quizTitle, "topic": topic})
}

// MarkApplied flags results as folded into their student record. Results
// already flagged are left untouched.
func (r *ResultRepository) MarkApplied(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.Col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "applied": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"applied": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to flag applied quiz results: %w", err)
	}
	return nil
}

func (r *ResultRepository) Count(ctx context.Context, q ResultQuery) (int64, error) {
	return r.Col.CountDocuments(ctx, q.filter())
}

func (r *ResultRepository) Find(ctx context.Context, q ResultQuery) ([]models.QuizResult, error) {
	order := -1
	if q.Ascending {
		order = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: order}, {Key: "_id", Value: order}})
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := r.Col.Find(ctx, q.filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz results: %w", err)
	}
	defer cur.Close(ctx)

	results := []models.QuizResult{}
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode quiz results: %w", err)
	}
	return results, nil
}

// usersCollection is the school's user directory, joined read-only for
// leaderboard names and registration dates.
const usersCollection = "users"

// leaderboardPipeline groups results completed since "since" (optionally for
// one topic) by user, drops users missing from the directory and returns the
// top limit rows ranked by average desc, quiz count desc, registration asc,
// then user id. Directory ids may be ObjectIDs or strings.
func leaderboardPipeline(topic string, since time.Time, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: ResultQuery{Topic: topic, Since: since}.filter()}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$user_id",
			"average_score": bson.M{"$avg": "$score"},
			"total_quizzes": bson.M{"$sum": 1},
			"best_score":    bson.M{"$max": "$score"},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from": usersCollection,
			"let":  bson.M{"uid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{bson.M{"$toString": "$_id"}, "$$uid"}}}},
				bson.M{"$project": bson.M{"name": 1, "created_at": 1}},
			},
			"as": "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$sort", Value: bson.D{
			{Key: "average_score", Value: -1},
			{Key: "total_quizzes", Value: -1},
			{Key: "user.created_at", Value: 1},
			{Key: "_id", Value: 1},
		}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{
			"average_score": 1,
			"total_quizzes": 1,
			"best_score":    1,
			"name":          "$user.name",
			"created_at":    "$user.created_at",
		}}},
	}
}

// Leaderboard returns at most limit ranked rows for the window.
func (r *ResultRepository) Leaderboard(ctx context.Context, topic string, since time.Time, limit int) ([]models.UserStats, error) {
	cur, err := r.Col.Aggregate(ctx, leaderboardPipeline(topic, since, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}
	defer cur.Close(ctx)

	stats := []models.UserStats{}
	if err := cur.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard: %w", err)
	}
	return stats, nil
}
