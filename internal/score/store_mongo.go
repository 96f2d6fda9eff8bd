package score

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
)

const scoreCollection = "scores"

// MongoStore mirrors the document layout the game originally shipped with:
// one document per (username, date), replaced wholesale on resubmission.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(scoreCollection)}
}

type scoreDoc struct {
	Username string    `bson:"username"`
	Points   int       `bson:"points"`
	Date     time.Time `bson:"date"`
}

// EnsureIndexes creates the unique (username, date) index backing the upsert
// atomicity contract.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) Upsert(ctx context.Context, rec domain.ScoreRecord) error {
	filter := bson.M{"username": rec.Username, "date": rec.Date}
	doc := scoreDoc{Username: rec.Username, Points: rec.Points, Date: rec.Date}

	_, err := s.col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	}
	return err
}

func (s *MongoStore) Top(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "points", Value: -1}, {Key: "date", Value: 1}}).
		SetLimit(int64(n))

	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []domain.ScoreRecord
	for cur.Next(ctx) {
		var d scoreDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		recs = append(recs, domain.ScoreRecord{
			Username: d.Username,
			Points:   d.Points,
			Date:     domain.NormalizeDate(d.Date),
		})
	}
	return recs, cur.Err()
}

func (s *MongoStore) HighestScore(ctx context.Context, username string) (int, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "points", Value: -1}})

	var d scoreDoc
	err := s.col.FindOne(ctx, bson.M{"username": username}, opts).Decode(&d)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return d.Points, true, nil
}
