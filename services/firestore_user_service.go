// services/firestore_user_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fitora-app/fitora_backend/models"
)

// FirestoreUserService mirrors the user profile store on Firestore. It is the
// schemaless counterpart of repositories.UserRepository; both expose the same
// CRUD operations and writes go through both so either backend can serve
// reads.
type FirestoreUserService struct {
	client *firestore.Client
}

// NewFirestoreUserService creates a Firestore-backed user service.
func NewFirestoreUserService(client *firestore.Client) *FirestoreUserService {
	return &FirestoreUserService{client: client}
}

func (s *FirestoreUserService) users() *firestore.CollectionRef {
	return s.client.Collection("users")
}

func docToUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	return decodeUserDoc(doc.Ref.ID, doc.DataTo)
}

// decodeUserDoc maps a document onto the user model. A document that does
// not decode is an error, not an absent user; the caller must be able to
// tell corruption apart from a missing record.
func decodeUserDoc(id string, dataTo func(v interface{}) error) (*models.User, error) {
	var user models.User
	if err := dataTo(&user); err != nil {
		return nil, fmt.Errorf("decode user document %s: %w", id, err)
	}
	user.FirebaseUID = id
	return &user, nil
}

func (s *FirestoreUserService) FindByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	doc, err := s.users().Doc(firebaseUID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return docToUser(doc)
}

func (s *FirestoreUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	iter := s.users().Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	docs, err := iter.GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docToUser(docs[0])
}

// Upsert merges the profile into the document keyed by provider UID.
func (s *FirestoreUserService) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now()
	_, err := s.users().Doc(user.FirebaseUID).Set(ctx, map[string]interface{}{
		"firebaseUid": user.FirebaseUID,
		"email":       user.Email,
		"name":        user.Name,
		"avatarUrl":   user.AvatarURL,
		"updatedAt":   now,
	}, firestore.MergeAll)
	return err
}

// UpdateFields merges a partial update into the document keyed by provider
// UID.
func (s *FirestoreUserService) UpdateFields(ctx context.Context, firebaseUID string, fields map[string]interface{}) error {
	fields["updatedAt"] = time.Now()
	_, err := s.users().Doc(firebaseUID).Set(ctx, fields, firestore.MergeAll)
	return err
}

func (s *FirestoreUserService) List(ctx context.Context, limit int) ([]models.User, error) {
	iter := s.users().OrderBy("updatedAt", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	docs, err := iter.GetAll()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := docToUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func (s *FirestoreUserService) Delete(ctx context.Context, firebaseUID string) error {
	_, err := s.users().Doc(firebaseUID).Delete(ctx)
	return err
}
