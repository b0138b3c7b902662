package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage implements the user-profile store on Google Cloud
// Firestore.
//
// Error handling strategy:
// - Read operations: return errors (profile data must be available).
// - UpsertUser: log and continue (a missed last-seen refresh is acceptable,
//   a failed sign-in is not).
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
}

var _ Storage = (*FirestoreStorage)(nil)

// userDoc is the profile document shape in Firestore
type userDoc struct {
	UID         string    `firestore:"uid"`
	Email       string    `firestore:"email,omitempty"`
	Name        string    `firestore:"name,omitempty"`
	DisplayName string    `firestore:"display_name,omitempty"`
	Town        string    `firestore:"town,omitempty"`
	Instruments []string  `firestore:"instruments,omitempty"`
	FirstSeen   time.Time `firestore:"first_seen"`
	LastSeen    time.Time `firestore:"last_seen"`
}

func (d *userDoc) toProfile() *UserProfile {
	return &UserProfile{
		UID:         d.UID,
		Email:       d.Email,
		Name:        d.Name,
		DisplayName: d.DisplayName,
		Town:        d.Town,
		Instruments: d.Instruments,
		FirstSeen:   d.FirstSeen,
		LastSeen:    d.LastSeen,
	}
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = "bndy_users"
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStorage{
		client:     client,
		collection: collection,
	}, nil
}

func (s *FirestoreStorage) doc(uid string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(uid)
}

// UpsertUser creates or refreshes a user profile
func (s *FirestoreStorage) UpsertUser(ctx context.Context, uid, email, name string) error {
	now := time.Now()

	snap, err := s.doc(uid).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		log.LogErrorWithFields("storage", "Failed to read user for upsert", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
		return nil
	}

	if err == nil && snap.Exists() {
		updates := []firestore.Update{
			{Path: "email", Value: email},
			{Path: "last_seen", Value: now},
		}
		if name != "" {
			updates = append(updates, firestore.Update{Path: "name", Value: name})
		}
		if _, err := s.doc(uid).Update(ctx, updates); err != nil {
			log.LogErrorWithFields("storage", "Failed to update user", map[string]any{
				"uid":   uid,
				"error": err.Error(),
			})
		}
		return nil
	}

	doc := userDoc{
		UID:       uid,
		Email:     email,
		Name:      name,
		FirstSeen: now,
		LastSeen:  now,
	}
	if _, err := s.doc(uid).Set(ctx, doc); err != nil {
		log.LogErrorWithFields("storage", "Failed to create user", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
	}
	return nil
}

// GetUser returns a user profile by uid
func (s *FirestoreStorage) GetUser(ctx context.Context, uid string) (*UserProfile, error) {
	snap, err := s.doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", uid, err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", uid, err)
	}
	return doc.toProfile(), nil
}

// UpdateProfile applies the non-nil fields of update to a user's profile
func (s *FirestoreStorage) UpdateProfile(ctx context.Context, uid string, update ProfileUpdate) (*UserProfile, error) {
	var updates []firestore.Update
	if update.DisplayName != nil {
		updates = append(updates, firestore.Update{Path: "display_name", Value: *update.DisplayName})
	}
	if update.Town != nil {
		updates = append(updates, firestore.Update{Path: "town", Value: *update.Town})
	}
	if update.Instruments != nil {
		updates = append(updates, firestore.Update{Path: "instruments", Value: update.Instruments})
	}

	if len(updates) > 0 {
		if _, err := s.doc(uid).Update(ctx, updates); err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to update profile %s: %w", uid, err)
		}
	}

	return s.GetUser(ctx, uid)
}

// GetAllUsers returns all user profiles
func (s *FirestoreStorage) GetAllUsers(ctx context.Context) ([]UserProfile, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var users []UserProfile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating user documents: %w", err)
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			log.LogWarnWithFields("storage", "Skipping undecodable user document", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		users = append(users, *doc.toProfile())
	}
	return users, nil
}

// DeleteUser removes a user profile
func (s *FirestoreStorage) DeleteUser(ctx context.Context, uid string) error {
	if _, err := s.doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", uid, err)
	}
	return nil
}

// Close releases the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
