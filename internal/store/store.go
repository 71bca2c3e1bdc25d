// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/miktsoan/core/internal/domain"
)

// Repository defines the interface for the document store and the durable
// state snapshot blob.
type Repository interface {
	// GetUserByPhone retrieves a user profile by phone number.
	// Returns (nil, nil) if no profile exists.
	GetUserByPhone(ctx context.Context, phone string) (*domain.UserProfile, error)

	// UpsertUser creates or updates a user profile keyed by phone number.
	UpsertUser(ctx context.Context, user *domain.UserProfile) error

	// CreateRequest stores a new service request document.
	CreateRequest(ctx context.Context, req *domain.ServiceRequest) error

	// GetRequest retrieves a service request by ID. Returns (nil, nil) if
	// the request does not exist.
	GetRequest(ctx context.Context, id string) (*domain.ServiceRequest, error)

	// SaveSnapshot writes the named state snapshot blob, replacing any
	// previous contents.
	SaveSnapshot(ctx context.Context, name string, blob []byte) error

	// LoadSnapshot reads the named state snapshot blob. Returns (nil, nil)
	// if no snapshot has been written yet.
	LoadSnapshot(ctx context.Context, name string) ([]byte, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
