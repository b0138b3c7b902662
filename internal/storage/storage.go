package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user profile doesn't exist
var ErrUserNotFound = errors.New("user not found")

// UserProfile is a portal user's persisted profile
type UserProfile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Town        string    `json:"town,omitempty"`
	Instruments []string  `json:"instruments,omitempty"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
}

// ProfileUpdate carries the caller-editable profile fields. Nil fields are
// left untouched.
type ProfileUpdate struct {
	DisplayName *string  `json:"displayName,omitempty"`
	Town        *string  `json:"town,omitempty"`
	Instruments []string `json:"instruments,omitempty"`
}

// Storage is the user-profile store behind the portal
type Storage interface {
	// UpsertUser records a sign-in: creates the profile on first sight,
	// refreshes identity claims and last-seen on every later one.
	UpsertUser(ctx context.Context, uid, email, name string) error

	GetUser(ctx context.Context, uid string) (*UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, update ProfileUpdate) (*UserProfile, error)
	GetAllUsers(ctx context.Context) ([]UserProfile, error)
	DeleteUser(ctx context.Context, uid string) error

	Close() error
}
