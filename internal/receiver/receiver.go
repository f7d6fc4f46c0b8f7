// Package receiver implements the receiving side of the blob-transfer
// protocol: a single-threaded, cooperative event loop that accepts many
// concurrent senders, owns their per-sender Blob assembly state, and
// drives admission, credit issuance, and delivery through a host-supplied
// Callbacks value.
package receiver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alxayo/blobxfer/internal/blob"
	"github.com/alxayo/blobxfer/internal/bufpool"
	"github.com/alxayo/blobxfer/internal/logger"
	"github.com/alxayo/blobxfer/internal/metrics"
	"github.com/alxayo/blobxfer/internal/protocol"
	"github.com/alxayo/blobxfer/internal/wire"
)

// Receiver owns one bound endpoint, its blob table, and the application
// capability set. It is not safe for concurrent use from more than one
// goroutine; Run owns it for the duration of the loop.
type Receiver struct {
	router    *wire.Router
	table     *blob.Table
	cb        Callbacks
	metrics   *metrics.Receiver
	log       *slog.Logger
	chunkSize int
}

// New binds endpoint and returns a Receiver ready to Run. chunkSize<=0
// defaults to protocol.DefaultChunkSize. m may be nil, in which case no
// metrics are recorded.
func New(endpoint string, chunkSize int, cb Callbacks, m *metrics.Receiver) (*Receiver, error) {
	if chunkSize <= 0 {
		chunkSize = protocol.DefaultChunkSize
	}
	r, err := wire.NewRouter(endpoint, 0, protocol.MaxMessageSize(chunkSize))
	if err != nil {
		return nil, err
	}
	rc := &Receiver{
		router:    r,
		table:     blob.NewTable(),
		cb:        cb,
		metrics:   m,
		log:       logger.Logger(),
		chunkSize: chunkSize,
	}
	r.OnPeerRemoved(func(senderID string) {
		rc.table.Delete(senderID)
	})
	return rc, nil
}

// Addr returns the bound listener address.
func (r *Receiver) Addr() string { return r.router.Addr().String() }

// Close tears down the underlying transport.
func (r *Receiver) Close() error { return r.router.Close() }

// Run is the main event loop: prune, poll, dispatch, shutdown-check. It
// returns nil when stop is signaled, or the first global (non-session)
// transport error.
func (r *Receiver) Run(stop <-chan struct{}) error {
	for {
		r.prune()

		n, err := r.router.Poll(protocol.PollSlice)
		if err != nil {
			return err
		}
		if n > 0 {
			senderID, parts, rerr := r.router.RecvMultipart(protocol.PollSlice)
			if rerr != nil {
				// A per-peer transport error is session-level, not fatal:
				// the offending sender's table entry is already gone (the
				// router fired OnPeerRemoved before surfacing this).
				r.cb.info(fmt.Sprintf("session error for %s: %v", senderID, rerr))
			} else if len(parts) > 0 {
				r.dispatch(senderID, parts)
			}
		}

		select {
		case <-stop:
			r.cb.info("receiver: stop signaled, exiting loop")
			return nil
		default:
		}
	}
}

func (r *Receiver) prune() {
	reaped := r.table.Prune(time.Now())
	for range reaped {
		if r.metrics != nil {
			r.metrics.SessionsTTLReaped.Inc()
		}
	}
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(r.table.Len()))
	}
}

func (r *Receiver) dispatch(senderID string, parts [][]byte) {
	verb := string(parts[0])
	switch verb {
	case protocol.VerbPing:
		r.handlePing(senderID)
	case protocol.VerbStart:
		r.handleStart(senderID, parts)
	case protocol.VerbChunk:
		r.handleChunk(senderID, parts)
	case protocol.VerbEnd:
		r.handleEnd(senderID, parts)
	default:
		r.cb.info(fmt.Sprintf("receiver: dropping unknown verb %q from %s", verb, senderID))
	}
}

func (r *Receiver) handlePing(senderID string) {
	if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbPong)}, 0); err != nil {
		r.cb.info(fmt.Sprintf("receiver: PONG send failed for %s: %v", senderID, err))
	}
}

func (r *Receiver) handleStart(senderID string, parts [][]byte) {
	if len(parts) != 3 {
		r.abort(senderID)
		return
	}
	blobID := parts[1]
	dataSize, err := protocol.ParseUint(parts[2])
	if err != nil {
		r.abort(senderID)
		return
	}
	if !r.cb.ready(dataSize) {
		if werr := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbNogo), []byte("0")}, 0); werr != nil {
			r.cb.info(fmt.Sprintf("receiver: NOGO send failed for %s: %v", senderID, werr))
		}
		return
	}

	r.table.Put(senderID, blob.New(blobID, dataSize))
	logger.WithSession(r.log, senderID, blobID).Debug("session admitted", "size", dataSize)

	if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbGogo), protocol.FormatUint(uint64(r.chunkSize))}, 0); err != nil {
		r.cb.info(fmt.Sprintf("receiver: GOGO send failed for %s: %v", senderID, err))
		return
	}
	for i := 0; i < protocol.MaxSimulChunks; i++ {
		if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbToken)}, 0); err != nil {
			r.cb.info(fmt.Sprintf("receiver: TOKEN send failed for %s: %v", senderID, err))
			return
		}
		if r.metrics != nil {
			r.metrics.TokensIssuedTotal.Inc()
		}
	}
}

func (r *Receiver) handleChunk(senderID string, parts [][]byte) {
	if len(parts) != 2 {
		return
	}
	b, ok := r.table.Get(senderID)
	if !ok {
		return // dropped silently, per spec
	}
	b.Append(parts[1])
	if r.metrics != nil {
		r.metrics.BytesReceivedTotal.Add(float64(len(parts[1])))
	}
	bufpool.Put(parts[1]) // Append already copied the bytes into the blob's own buffer
	if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbToken)}, 0); err != nil {
		r.cb.info(fmt.Sprintf("receiver: TOKEN replenish failed for %s: %v", senderID, err))
		return
	}
	if r.metrics != nil {
		r.metrics.TokensIssuedTotal.Inc()
	}
}

func (r *Receiver) handleEnd(senderID string, parts [][]byte) {
	if len(parts) != 2 {
		return
	}
	b, ok := r.table.Get(senderID)
	r.table.Delete(senderID)
	if !ok {
		r.cb.info(fmt.Sprintf("receiver: END with no active session for %s", senderID))
		return
	}
	if !b.VerifyHash(string(parts[1])) {
		if r.metrics != nil {
			r.metrics.SessionsFailed.WithLabelValues("hash_mismatch").Inc()
		}
		if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbFail), []byte("Hash mismatch")}, 0); err != nil {
			r.cb.info(fmt.Sprintf("receiver: FAIL send failed for %s: %v", senderID, err))
		}
		return
	}
	if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbOK), []byte("Great success")}, 0); err != nil {
		r.cb.info(fmt.Sprintf("receiver: OK send failed for %s: %v", senderID, err))
	}
	if r.metrics != nil {
		r.metrics.SessionsCompleted.Inc()
	}
	logger.WithSession(r.log, senderID, b.ID).Info("blob finalized", "bytes", b.Len())
	r.cb.complete(senderID, b.Bytes())
}

func (r *Receiver) abort(senderID string) {
	if err := r.router.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbFail), []byte("abort")}, 0); err != nil {
		r.cb.info(fmt.Sprintf("receiver: abort send failed for %s: %v", senderID, err))
	}
	r.table.Delete(senderID)
}
