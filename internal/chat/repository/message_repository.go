package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"tour_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessagesCollection mongo collection of chat messages
const MessagesCollection = "messages"

// MessageRepository append-only chat history keyed by tour name
type MessageRepository interface {
	// Append store msg and set its server id, never updates an existing entry
	Append(ctx context.Context, msg *domain.Message) (string, error)
	// ListByRoom every message of room in insertion order
	ListByRoom(ctx context.Context, room string) ([]domain.Message, error)
}

// messageDocument shares the booking site's messages collection, field names
// follow the documents the site already writes. created_at is ours.
type messageDocument struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`
	// ClientID the sender's id, the site stores it as a number
	ClientID    interface{} `bson:"id,omitempty"`
	Name        string      `bson:"name"`
	SenderEmail string      `bson:"senderEmail"`
	TourName    string      `bson:"tourName"`
	Text        string      `bson:"text"`
	Date        string      `bson:"date"`
	CreatedAt   time.Time   `bson:"created_at"`
}

func (d messageDocument) toDomain() domain.Message {
	return domain.Message{
		ID:          d.ID.Hex(),
		ClientID:    clientIDString(d.ClientID),
		Name:        d.Name,
		SenderEmail: d.SenderEmail,
		TourName:    d.TourName,
		Text:        d.Text,
		Date:        d.Date,
		Durable:     true,
	}
}

type mongoMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository on db.messages
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		coll: db.Collection(MessagesCollection),
	}
}

// EnsureMessageIndexes index the history query
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(MessagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tourName", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	return nil
}

func (r *mongoMessageRepository) Append(ctx context.Context, msg *domain.Message) (string, error) {
	doc := messageDocument{
		ID:          primitive.NewObjectID(),
		ClientID:    clientIDValue(msg.ClientID),
		Name:        msg.Name,
		SenderEmail: msg.SenderEmail,
		TourName:    msg.TourName,
		Text:        msg.Text,
		Date:        msg.Date,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}

	msg.ID = doc.ID.Hex()
	return msg.ID, nil
}

func (r *mongoMessageRepository) ListByRoom(ctx context.Context, room string) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"tourName": room}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}

	messages := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		messages = append(messages, d.toDomain())
	}
	return messages, nil
}

// clientIDValue numeric ids go back as numbers like the site writes them
func clientIDValue(id string) interface{} {
	if id == "" {
		return nil
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func clientIDString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

type memoryMessageRepository struct {
	mu    sync.RWMutex
	rooms map[string][]domain.Message
}

// NewMemoryMessageRepository process local MessageRepository, history is lost on restart
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{
		rooms: make(map[string][]domain.Message),
	}
}

func (r *memoryMessageRepository) Append(ctx context.Context, msg *domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg.ID = uuid.New().String()

	stored := *msg
	stored.Durable = true

	r.mu.Lock()
	r.rooms[msg.TourName] = append(r.rooms[msg.TourName], stored)
	r.mu.Unlock()

	return msg.ID, nil
}

func (r *memoryMessageRepository) ListByRoom(ctx context.Context, room string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make([]domain.Message, len(r.rooms[room]))
	copy(messages, r.rooms[room])
	return messages, nil
}
