package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainuser "dmchat/internal/domain/user"
)

type UserRepository struct {
	col *mongo.Collection
	ids sequence
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(colUsers), ids: newSequence(db, colUsers)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	return r.findOne(ctx, bson.M{"_id": int64(id)})
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []domainuser.ID) ([]*domainuser.User, error) {
	raw := make([]int64, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, int64(id))
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": raw}})
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	return r.findOne(ctx, bson.M{"email": domainuser.NormalizeEmail(email)})
}

func (r *UserRepository) List(ctx context.Context) ([]*domainuser.User, error) {
	return r.find(ctx, bson.M{})
}

func (r *UserRepository) Create(ctx context.Context, u *domainuser.User) error {
	if u == nil {
		return domainuser.ErrIDRequired
	}
	id, err := r.ids.next(ctx)
	if err != nil {
		return err
	}
	doc := newUserDocument(u)
	doc.ID = id
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainuser.ErrEmailAlreadyUsed
		}
		return fmt.Errorf("mongo: insert user: %w", err)
	}
	u.ID = domainuser.ID(id)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *domainuser.User) error {
	if u == nil || !u.ID.Valid() {
		return domainuser.ErrIDRequired
	}
	doc := newUserDocument(u)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainuser.ErrEmailAlreadyUsed
		}
		return fmt.Errorf("mongo: update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id domainuser.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": int64(id)})
	if err != nil {
		return fmt.Errorf("mongo: delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) find(ctx context.Context, filter bson.M) ([]*domainuser.User, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode users: %w", err)
	}
	out := make([]*domainuser.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

type userDocument struct {
	ID           int64  `bson:"_id"`
	Email        string `bson:"email"`
	Name         string `bson:"name"`
	Avatar       string `bson:"avatar,omitempty"`
	PasswordHash string `bson:"password_hash"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:           int64(u.ID),
		Email:        domainuser.NormalizeEmail(u.Email),
		Name:         u.Name,
		Avatar:       u.Avatar,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixMilli(),
		UpdatedAt:    u.UpdatedAt.UnixMilli(),
	}
}

func (d userDocument) toDomain() *domainuser.User {
	return &domainuser.User{
		ID:           domainuser.ID(d.ID),
		Email:        d.Email,
		Name:         d.Name,
		Avatar:       d.Avatar,
		PasswordHash: d.PasswordHash,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
	}
}

var _ domainuser.Repository = (*UserRepository)(nil)
