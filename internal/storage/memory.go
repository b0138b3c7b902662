package storage

import (
	"context"
	"sync"
	"time"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage is a mutex-guarded in-memory profile store, used in
// development and tests
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[string]*UserProfile // keyed by uid
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]*UserProfile),
	}
}

// UpsertUser creates or refreshes a user profile
func (s *MemoryStorage) UpsertUser(ctx context.Context, uid, email, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if user, exists := s.users[uid]; exists {
		userCopy := *user
		userCopy.Email = email
		if name != "" {
			userCopy.Name = name
		}
		userCopy.LastSeen = now
		s.users[uid] = &userCopy
		return nil
	}

	s.users[uid] = &UserProfile{
		UID:       uid,
		Email:     email,
		Name:      name,
		FirstSeen: now,
		LastSeen:  now,
	}
	return nil
}

// GetUser returns a user profile by uid
func (s *MemoryStorage) GetUser(ctx context.Context, uid string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[uid]
	if !exists {
		return nil, ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

// UpdateProfile applies the non-nil fields of update to a user's profile
func (s *MemoryStorage) UpdateProfile(ctx context.Context, uid string, update ProfileUpdate) (*UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[uid]
	if !exists {
		return nil, ErrUserNotFound
	}

	userCopy := *user
	if update.DisplayName != nil {
		userCopy.DisplayName = *update.DisplayName
	}
	if update.Town != nil {
		userCopy.Town = *update.Town
	}
	if update.Instruments != nil {
		userCopy.Instruments = append([]string(nil), update.Instruments...)
	}
	s.users[uid] = &userCopy

	result := userCopy
	return &result, nil
}

// GetAllUsers returns all user profiles
func (s *MemoryStorage) GetAllUsers(ctx context.Context) ([]UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]UserProfile, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	return users, nil
}

// DeleteUser removes a user profile
func (s *MemoryStorage) DeleteUser(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, uid)
	return nil
}

// Close implements Storage
func (s *MemoryStorage) Close() error {
	return nil
}
