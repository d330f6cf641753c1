package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"performance-service/internal/models"
)

type StudentRepository struct {
	Col *mongo.Collection
}

func NewStudentRepository(db *mongo.Database) *StudentRepository {
	return &StudentRepository{Col: db.Collection("students")}
}

func (r *StudentRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentRecord, error) {
	var student models.StudentRecord
	err := r.Col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&student)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student %s: %w", userID, err)
	}
	return &student, nil
}

func (r *StudentRepository) Create(ctx context.Context, student *models.StudentRecord) error {
	if student.ID == "" {
		student.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.Col.InsertOne(ctx, student)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// UpdateIfVersion replaces the stored document only if its version still
// equals expected, then bumps student.Version.
func (r *StudentRepository) UpdateIfVersion(ctx context.Context, student *models.StudentRecord, expected int64) error {
	next := *student
	next.Version = expected + 1
	// _id is immutable; leave it out of the replacement
	next.ID = ""

	res, err := r.Col.ReplaceOne(ctx, bson.M{"user_id": student.UserID, "version": expected}, &next)
	if err != nil {
		return fmt.Errorf("failed to update student %s: %w", student.UserID, err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	student.Version = next.Version
	return nil
}
