package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
)

// MongoStore keeps solutions with integer ids drawn from a counters
// collection so every backend exposes the same id type.
type MongoStore struct {
	client    *mongo.Client
	db        *mongo.Database
	solutions *mongo.Collection
	history   *mongo.Collection
	counters  *mongo.Collection
	now       func() time.Time
}

var _ Store = (*MongoStore)(nil)

type historyDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	SessionID     string             `bson:"session_id"`
	UserMessage   string             `bson:"user_message"`
	AgentResponse string             `bson:"agent_response"`
	Timestamp     time.Time          `bson:"timestamp"`
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	if dbName == "" {
		dbName = "painradar"
	}

	db := client.Database(dbName)
	log.WithField("database", dbName).Info("MongoDB connected")
	return &MongoStore{
		client:    client,
		db:        db,
		solutions: db.Collection("solutions"),
		history:   db.Collection("conversation_history"),
		counters:  db.Collection("counters"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (m *MongoStore) Kind() string { return config.DatabaseMongo }

func (m *MongoStore) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoStore) Init(ctx context.Context) error {
	solutionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "comment_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "subreddit", Value: 1},
				{Key: "score", Value: -1},
				{Key: "created_at", Value: -1},
			},
		},
	}
	if _, err := m.solutions.Indexes().CreateMany(ctx, solutionIndexes); err != nil {
		return fmt.Errorf("create solution indexes: %w", err)
	}

	historyIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}},
	}
	if _, err := m.history.Indexes().CreateOne(ctx, historyIndex); err != nil {
		return fmt.Errorf("create history index: %w", err)
	}
	return nil
}

func (m *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func (m *MongoStore) UpsertSolution(ctx context.Context, sol *models.ExceptionalSolution) error {
	if err := validateSolution(sol); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = m.upsertSolution(ctx, sol); !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("upsert solution: %w", err)
	}
	return nil
}

func (m *MongoStore) upsertSolution(ctx context.Context, sol *models.ExceptionalSolution) error {
	var existing struct {
		ID int64 `bson:"_id"`
	}
	id := int64(0)
	err := m.solutions.FindOne(ctx, bson.M{"comment_id": sol.CommentID}).Decode(&existing)
	switch {
	case err == nil:
		id = existing.ID
	case errors.Is(err, mongo.ErrNoDocuments):
		if id, err = m.nextID(ctx, "solutions"); err != nil {
			return err
		}
	default:
		return err
	}

	createdAt := m.now().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"post_id":       sol.PostID,
			"author":        sol.Author,
			"solution_text": sol.SolutionText,
			"score":         sol.Score,
			"pain_type":     sol.PainType,
			"intensity":     sol.Intensity,
			"subreddit":     sol.Subreddit,
			"created_at":    createdAt,
		},
		"$setOnInsert": bson.M{"_id": id},
	}

	var stored models.ExceptionalSolution
	err = m.solutions.FindOneAndUpdate(ctx,
		bson.M{"comment_id": sol.CommentID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return err
	}
	sol.ID = stored.ID
	sol.CreatedAt = createdAt
	return nil
}

func (m *MongoStore) QuerySolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error) {
	filter := bson.M{}
	if s := strings.TrimSpace(subreddit); s != "" {
		filter["subreddit"] = s
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := m.solutions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer cursor.Close(ctx)

	solutions := []models.ExceptionalSolution{}
	if err := cursor.All(ctx, &solutions); err != nil {
		return nil, fmt.Errorf("decode solutions: %w", err)
	}
	for i := range solutions {
		solutions[i].CreatedAt = solutions[i].CreatedAt.UTC()
	}
	return solutions, nil
}

func (m *MongoStore) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if strings.TrimSpace(turn.SessionID) == "" {
		return ErrSessionRequired
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.now()
	}
	turn.Timestamp = turn.Timestamp.UTC().Truncate(time.Millisecond)
	_, err := m.history.InsertOne(ctx, historyDoc{
		SessionID:     turn.SessionID,
		UserMessage:   turn.UserMessage,
		AgentResponse: turn.AgentResponse,
		Timestamp:     turn.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (m *MongoStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := m.history.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	turns := make([]models.ConversationTurn, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		d := docs[i]
		turns = append(turns, models.ConversationTurn{
			SessionID:     d.SessionID,
			UserMessage:   d.UserMessage,
			AgentResponse: d.AgentResponse,
			Timestamp:     d.Timestamp.UTC(),
		})
	}
	return turns, nil
}

func (m *MongoStore) ClearTurns(ctx context.Context, sessionID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, ErrSessionRequired
	}
	res, err := m.history.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	return res.DeletedCount, nil
}
