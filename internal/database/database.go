package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrRepository marks any storage-layer fault. The dispatch pipeline matches
// on it to answer RepositoryError instead of ServerError; callers never
// interpret driver-specific error codes.
var ErrRepository = errors.New("repository error")

// wrapRepo tags a storage fault with ErrRepository while keeping the cause.
func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

// Database defines the methods for message and stamp persistence.
type Database interface {
	// Close closes the database connection.
	Close() error

	// SaveMessage persists a message and assigns its id.
	SaveMessage(ctx context.Context, message *Message) error

	// FindMessages returns the messages of a competition visible to the
	// given member, oldest first. beforeTime restricts to messages strictly
	// older than the cursor (<= 0 means unconstrained) and count limits the
	// result, applied newest first (<= 0 means unconstrained).
	FindMessages(ctx context.Context, q *MessageQuery) ([]*MessageRow, error)

	// FindStamps returns all non-deleted stamps ordered by id.
	FindStamps(ctx context.Context) ([]*Stamp, error)

	// FindStamp returns a non-deleted stamp by id, or nil when absent.
	FindStamp(ctx context.Context, stampID int64) (*Stamp, error)
}

// MessageQuery is the parameter set of FindMessages.
type MessageQuery struct {
	CompeNo     int
	MemberID    string
	ReceptAll   bool  // whether event-wide messages are visible to the member
	BeforeTime  int64 // exclusive upper time bound, <= 0 for none
	Count       int64 // newest-first limit, <= 0 for none
	ExcludeSelf bool  // drop messages the member sent
}
