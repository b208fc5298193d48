package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	EmailKey     string    `bson:"email_key"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash"`
	AvatarURL    *string   `bson:"avatar_url,omitempty"`
	Online       bool      `bson:"online"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toUserDoc(u *domain.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Email:        u.Email,
		EmailKey:     strings.ToLower(strings.TrimSpace(u.Email)),
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		AvatarURL:    u.AvatarURL,
		Online:       u.Online,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           id,
		Email:        d.Email,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		AvatarURL:    d.AvatarURL,
		Online:       d.Online,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(c *Client) *UserRepo {
	return &UserRepo{coll: c.DB.Collection(usersCollection)}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	_, err := r.coll.InsertOne(ctx, toUserDoc(user))
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email_key": strings.ToLower(strings.TrimSpace(email))})
}

func (r *UserRepo) ListExcept(ctx context.Context, id uuid.UUID) ([]domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "display_name", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": id.String()}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		u, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, displayName string, avatarURL *string) error {
	set := bson.M{"display_name": displayName, "updated_at": time.Now().UTC()}
	if avatarURL != nil {
		set["avatar_url"] = *avatarURL
	}
	return r.update(ctx, id, bson.M{"$set": set})
}

func (r *UserRepo) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"online": online}})
}

func (r *UserRepo) update(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

var _ repository.UserRepository = (*UserRepo)(nil)
