// Package blob holds the receiver-side per-sender session state: the
// in-memory byte buffer accumulating a transfer, its incremental SHA-256
// hash, and the inactivity deadline that drives TTL reaping.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"time"

	"github.com/alxayo/blobxfer/internal/protocol"
)

// Blob is one in-flight (or just-finalized) transfer owned by the
// receiver's session table. It is never accessed from more than one
// goroutine: the receiver loop is single-threaded against the table.
type Blob struct {
	ID        []byte
	array     []byte
	hash      hash.Hash
	timeToDie time.Time
	dataSize  uint64 // advertised by START; informational only, not enforced as a hard cap
}

// New creates a fresh Blob for id, sized to hold dataSize bytes without
// reallocation, with its TTL set to now+BLOB_TTL. A declared size of 1 GiB
// or more gets no preallocation; the buffer then grows as chunks arrive.
func New(id []byte, dataSize uint64) *Blob {
	b := &Blob{
		ID:        append([]byte(nil), id...),
		hash:      sha256.New(),
		timeToDie: time.Now().Add(protocol.BlobTTL),
		dataSize:  dataSize,
	}
	if dataSize > 0 && dataSize < 1<<30 {
		b.array = make([]byte, 0, dataSize)
	}
	return b
}

// Append adds a chunk payload to the buffer in arrival order, feeds it into
// the rolling hash, and refreshes the TTL. It never fails.
func (b *Blob) Append(chunk []byte) {
	b.array = append(b.array, chunk...)
	b.hash.Write(chunk)
	b.timeToDie = time.Now().Add(protocol.BlobTTL)
}

// Expired reports whether the blob's TTL has elapsed as of now.
func (b *Blob) Expired(now time.Time) bool {
	return !b.timeToDie.After(now)
}

// HexHash returns the lowercase-hex encoding of the hash over every byte
// appended so far, without finalizing (cloning semantics: sha256.Sum can be
// read repeatedly only if the underlying hash.Hash supports Sum(nil), which
// crypto/sha256 does).
func (b *Blob) HexHash() string {
	return hex.EncodeToString(b.hash.Sum(nil))
}

// VerifyHash reports whether hexExpected matches the blob's rolling hash,
// case-sensitively (the wire convention is lowercase on both sides).
func (b *Blob) VerifyHash(hexExpected string) bool {
	return b.HexHash() == hexExpected
}

// Bytes returns the accumulated buffer. The caller takes ownership; the
// receiver must not touch the blob again after handing this out.
func (b *Blob) Bytes() []byte {
	return b.array
}

// Len reports the number of bytes currently buffered.
func (b *Blob) Len() int {
	return len(b.array)
}
