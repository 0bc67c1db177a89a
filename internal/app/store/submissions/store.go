// internal/app/store/submissions/store.go
package submissions

import (
	"context"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "submission_attempts"
	DefaultLimit   = 50
	MaxLimit       = 500
)

// Record is one stored submission attempt.
type Record struct {
	ID          primitive.ObjectID        `bson:"_id,omitempty" json:"id"`
	DraftID     string                    `bson:"draft_id" json:"draftId"`
	ProjectName string                    `bson:"project_name" json:"projectName"`
	Files       int                       `bson:"files" json:"files"`
	State       string                    `bson:"state" json:"state"` // "done" or "failed"
	FailedPhase string                    `bson:"failed_phase,omitempty" json:"failedPhase,omitempty"`
	Detail      string                    `bson:"detail,omitempty" json:"detail,omitempty"`
	Rasters     []submission.RasterResult `bson:"rasters,omitempty" json:"rasters,omitempty"`
	ImageErrors []imageError              `bson:"image_errors,omitempty" json:"imageErrors,omitempty"`
	StartedAt   time.Time                 `bson:"started_at" json:"startedAt"`
	FinishedAt  time.Time                 `bson:"finished_at" json:"finishedAt"`
	DurationMS  int64                     `bson:"duration_ms" json:"durationMs"`
}

type imageError struct {
	Image string `bson:"image" json:"image"`
	Error string `bson:"error" json:"error"`
}

// Filter narrows List.
type Filter struct {
	ProjectName string
	DraftID     string
	State       string
	Limit       int64
}

// Store keeps the submission history. It implements submission.Recorder.
type Store struct {
	c *mongo.Collection
}

// New creates a new submissions Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// IndexModels lists the indexes List relies on. indexes.EnsureAll reconciles them.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "finished_at", Value: -1}},
			Options: options.Index().SetName("idx_attempts_finished_desc"),
		},
		{
			Keys: bson.D{
				{Key: "project_name", Value: 1},
				{Key: "finished_at", Value: -1},
			},
			Options: options.Index().SetName("idx_attempts_project_finished"),
		},
		{
			Keys: bson.D{
				{Key: "draft_id", Value: 1},
				{Key: "finished_at", Value: -1},
			},
			Options: options.Index().SetName("idx_attempts_draft_finished"),
		},
	}
}

// Record stores one finished attempt.
func (s *Store) Record(ctx context.Context, a submission.Attempt) error {
	rec := Record{
		ID:          primitive.NewObjectID(),
		DraftID:     a.Label,
		ProjectName: a.ProjectName,
		Files:       a.Files,
		State:       a.State.String(),
		FailedPhase: string(a.FailedPhase),
		Detail:      a.Detail,
		Rasters:     a.Rasters,
		StartedAt:   a.StartedAt.UTC(),
		FinishedAt:  a.FinishedAt.UTC(),
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	if !rec.StartedAt.IsZero() {
		rec.DurationMS = rec.FinishedAt.Sub(rec.StartedAt).Milliseconds()
	}
	for _, ie := range a.ImageErrors {
		rec.ImageErrors = append(rec.ImageErrors, imageError{Image: ie.Image, Error: ie.Error})
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// List returns attempts, most recent first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	query := bson.M{}
	if f.ProjectName != "" {
		query["project_name"] = f.ProjectName
	}
	if f.DraftID != "" {
		query["draft_id"] = f.DraftID
	}
	if f.State != "" {
		query["state"] = f.State
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []Record{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Recent returns the latest attempts across all drafts.
func (s *Store) Recent(ctx context.Context, limit int64) ([]Record, error) {
	return s.List(ctx, Filter{Limit: limit})
}
