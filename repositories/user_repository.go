package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitora-app/fitora_backend/config"
	"github.com/fitora-app/fitora_backend/models"
)

// UserRepository is the MongoDB-backed user profile store.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Client) *UserRepository {
	return &UserRepository{
		collection: config.GetCollection(db, "users"),
	}
}

func (r *UserRepository) FindByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"firebaseUid": firebaseUID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindByPhone looks up a user by phone. excludeFirebaseUID, when set, skips
// that user so profile updates do not collide with their own number.
func (r *UserRepository) FindByPhone(ctx context.Context, phone, excludeFirebaseUID string) (*models.User, error) {
	filter := bson.M{"phone": phone}
	if excludeFirebaseUID != "" {
		filter["firebaseUid"] = bson.M{"$ne": excludeFirebaseUID}
	}

	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Upsert creates or refreshes the profile record keyed by the provider UID.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"email":     user.Email,
			"name":      user.Name,
			"avatarUrl": user.AvatarURL,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"firebaseUid": user.FirebaseUID,
			"role":        "user",
			"isPremium":   false,
			"createdAt":   now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"firebaseUid": user.FirebaseUID}, update, opts).Decode(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateFields applies a partial update to the user keyed by provider UID and
// returns the updated document.
func (r *UserRepository) UpdateFields(ctx context.Context, firebaseUID string, fields bson.M) (*models.User, error) {
	fields["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"firebaseUid": firebaseUID}, bson.M{"$set": fields}, opts).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *UserRepository) List(ctx context.Context, limit int64) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error) {
	fields["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *UserRepository) DeleteByFirebaseUID(ctx context.Context, firebaseUID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"firebaseUid": firebaseUID})
	return err
}
