package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

type conversationDoc struct {
	Key       string           `bson:"_id"`
	Messages  []domain.Message `bson:"messages"`
	Revision  int64            `bson:"revision"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

func (d conversationDoc) toDomain() *domain.Conversation {
	msgs := d.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	for i := range msgs {
		if msgs[i].Reactions == nil {
			msgs[i].Reactions = []domain.Reaction{}
		}
	}
	return &domain.Conversation{
		Key:      domain.ConversationKey(d.Key),
		Messages: msgs,
		Revision: d.Revision,
	}
}

// ConversationRepo stores one document per conversation. Put bumps the
// revision with $inc in the same upsert that replaces the messages.
type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(c *Client) *ConversationRepo {
	return &ConversationRepo{coll: c.DB.Collection(conversationsCollection)}
}

func (r *ConversationRepo) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	var doc conversationDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": string(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepo) Put(ctx context.Context, key domain.ConversationKey, messages []domain.Message) (*domain.Conversation, error) {
	if messages == nil {
		messages = []domain.Message{}
	}
	update := bson.M{
		"$set": bson.M{"messages": messages, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"revision": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc conversationDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": string(key)}, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

var _ repository.ConversationRepository = (*ConversationRepo)(nil)
