package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const usersCollection = "users"

var _ Repository = (*MongoRepository)(nil)

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index. It is idempotent.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, u *User) error {
	u.normalize()
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindAll(ctx context.Context) ([]User, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for i := range users {
		users[i].normalize()
	}
	return users, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	u.normalize()
	return &u, nil
}

func (r *MongoRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRepository) Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Firstname != nil {
		set["firstname"] = *upd.Firstname
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}
	if upd.OrderKeys != nil {
		set["orderKeys"] = upd.OrderKeys
	}

	u, err := r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrEmailExists
	}
	return u, err
}

func (r *MongoRepository) Delete(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	u.normalize()
	return &u, nil
}

func (r *MongoRepository) AddOrderKey(ctx context.Context, id, orderKey primitive.ObjectID) (*User, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{"orderKeys": orderKey},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepository) AdjustSolde(ctx context.Context, id primitive.ObjectID, delta int64) (*User, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["solde"] = bson.M{"$gte": -delta}
	}

	u, err := r.findOneAndUpdate(ctx, filter, bson.M{
		"$inc": bson.M{"solde": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if !errors.Is(err, ErrUserNotFound) || delta >= 0 {
		return u, err
	}

	// The guard on solde may be what rejected the update.
	n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if cerr != nil {
		return nil, fmt.Errorf("failed to count users: %w", cerr)
	}
	if n > 0 {
		return nil, ErrInsufficientBalance
	}
	return nil, ErrUserNotFound
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u User
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	u.normalize()
	return &u, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrUserNotFound
	}
	return err
}
