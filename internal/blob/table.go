package blob

import "time"

// Table maps sender_id to that sender's single active Blob. It is owned
// exclusively by the receiver's event loop; there is no internal locking
// because nothing else is permitted to touch it.
type Table struct {
	sessions map[string]*Blob
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Blob)}
}

// Get returns the blob for senderID, if any.
func (t *Table) Get(senderID string) (*Blob, bool) {
	b, ok := t.sessions[senderID]
	return b, ok
}

// Put installs (or replaces) the blob for senderID. A replace can only
// happen if a sender starts a new transfer without finalizing the
// previous one; that is permitted by spec (at most one concurrent blob,
// not at most one ever).
func (t *Table) Put(senderID string, b *Blob) {
	t.sessions[senderID] = b
}

// Delete removes senderID's entry, if present.
func (t *Table) Delete(senderID string) {
	delete(t.sessions, senderID)
}

// Len reports the number of active sessions.
func (t *Table) Len() int {
	return len(t.sessions)
}

// Prune removes every entry whose TTL has elapsed as of now, returning the
// removed sender ids so the caller can log or account for them.
func (t *Table) Prune(now time.Time) []string {
	var reaped []string
	for id, b := range t.sessions {
		if b.Expired(now) {
			reaped = append(reaped, id)
			delete(t.sessions, id)
		}
	}
	return reaped
}
