// Package mongo implements the question store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"time"

	"forumsearch/internal/question"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a MongoDB-backed question store.
type Store struct {
	client    *mongo.Client
	questions *mongo.Collection
	answers   *mongo.Collection
}

var _ question.Store = (*Store)(nil)

// NewStore connects to MongoDB and verifies the connection.
func NewStore(ctx context.Context, uri, dbName, questionsColl, answersColl string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	s := &Store{
		client:    client,
		questions: db.Collection(questionsColl),
		answers:   db.Collection(answersColl),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.questions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "visibility", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.answers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "question_id", Value: 1}},
	})
	return err
}

func (s *Store) GetActiveQuestion(ctx context.Context, id string) (*question.Question, error) {
	var q question.Question
	err := s.questions.FindOne(ctx, bson.M{
		"_id":        id,
		"visibility": question.VisibilityActive,
	}).Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, question.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *Store) CountActiveQuestions(ctx context.Context) (int64, error) {
	return s.questions.CountDocuments(ctx, bson.M{"visibility": question.VisibilityActive})
}

// StreamActiveQuestions pages through the active corpus ordered by _id,
// using a range query per page so no cursor is held across pages.
func (s *Store) StreamActiveQuestions(ctx context.Context, pageSize int) (question.PageIterator, error) {
	if pageSize <= 0 {
		return nil, errors.New("page size must be positive")
	}
	return &pageIterator{store: s, pageSize: pageSize}, nil
}

type pageIterator struct {
	store    *Store
	pageSize int
	lastID   string
	page     []*question.Question
	err      error
	done     bool
}

func (it *pageIterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}

	filter := bson.M{"visibility": question.VisibilityActive}
	if it.lastID != "" {
		filter["_id"] = bson.M{"$gt": it.lastID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(it.pageSize))

	cursor, err := it.store.questions.Find(ctx, filter, opts)
	if err != nil {
		it.err = err
		return false
	}

	var page []*question.Question
	if err := cursor.All(ctx, &page); err != nil {
		it.err = err
		return false
	}

	if len(page) == 0 {
		it.done = true
		return false
	}

	it.page = page
	it.lastID = page[len(page)-1].ID
	if len(page) < it.pageSize {
		it.done = true
	}
	return true
}

func (it *pageIterator) Page() []*question.Question { return it.page }
func (it *pageIterator) Err() error                 { return it.err }

func (it *pageIterator) Close(ctx context.Context) error { return nil }

func (s *Store) Create(ctx context.Context, q *question.Question) error {
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	if q.Visibility == "" {
		q.Visibility = question.VisibilityActive
	}

	_, err := s.questions.InsertOne(ctx, q)
	if mongo.IsDuplicateKeyError(err) {
		return question.ErrExists
	}
	return err
}

func (s *Store) Update(ctx context.Context, id string, upd question.Update) (*question.Question, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Body != nil {
		set["body"] = *upd.Body
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}

	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (s *Store) SetVisibility(ctx context.Context, id string, v question.Visibility) (*question.Question, error) {
	if !v.IsValid() {
		return nil, errors.New("unknown visibility state")
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"visibility": v,
		"updated_at": time.Now().UTC(),
	}})
}

// RecountAnswers recomputes answer_count from the answers collection.
// The recount is a plain count plus $set, so replaying it is harmless.
func (s *Store) RecountAnswers(ctx context.Context, id string) (*question.Question, error) {
	count, err := s.answers.CountDocuments(ctx, bson.M{
		"question_id": id,
		"deleted":     bson.M{"$ne": true},
	})
	if err != nil {
		return nil, err
	}

	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"answer_count": count,
		"updated_at":   time.Now().UTC(),
	}})
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*question.Question, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var q question.Question
	err := s.questions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, question.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
