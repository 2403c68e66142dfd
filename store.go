package chatpants

import "context"

// Store persists conversation records and group assignments. Saves are full
// document replaces; the last writer wins. Participants interact serially so
// no optimistic concurrency is attempted — two concurrent turns for the same
// key can race and the later save silently drops the earlier one's appended
// turn. Known limitation, accepted for the experiment's traffic pattern.
type Store interface {
	// SaveConversation upserts the record under its composite key.
	SaveConversation(ctx context.Context, rec Record) error

	// LoadConversation fetches the record for (participantID, group),
	// returning ErrNotFound when none exists.
	LoadConversation(ctx context.Context, participantID string, group Group) (Record, error)

	// SaveAssignment persists a participant's experimental condition.
	SaveAssignment(ctx context.Context, a Assignment) error

	// LoadAssignment fetches a participant's condition, returning ErrNotFound
	// when the participant has not been assigned yet.
	LoadAssignment(ctx context.Context, participantID string) (Assignment, error)

	Close() error
}
