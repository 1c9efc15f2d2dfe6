package store

// Entry is one stored record and its position in its conversation.
type Entry struct {
	Seq   uint64
	Value []byte
}

// Store is an append-only log of opaque records, one log per conversation.
// Sequence numbers start at 1 and grow monotonically within a conversation.
type Store interface {
	Append(conversation string, value []byte) (uint64, error)
	// Tail returns up to n most recent entries, oldest first.
	Tail(conversation string, n int) ([]Entry, error)
	Conversations() ([]string, error)
	Close() error
}
