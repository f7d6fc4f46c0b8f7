package sender

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	werrors "github.com/alxayo/blobxfer/internal/errors"
	"github.com/alxayo/blobxfer/internal/protocol"
	"github.com/alxayo/blobxfer/internal/wire"
)

// fakeReceiver drives the receiver side of the protocol directly against a
// wire.Router, without pulling in the receiver package, so these tests stay
// scoped to the sender's state machine.
func fakeReceiver(t *testing.T, r *wire.Router, data []byte, nogo bool) {
	t.Helper()
	go func() {
		senderID, parts, err := r.RecvMultipart(5 * time.Second)
		if err != nil || len(parts) != 1 || string(parts[0]) != protocol.VerbPing {
			return
		}
		if err := r.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbPong)}, time.Second); err != nil {
			return
		}

		_, parts, err = r.RecvMultipart(5 * time.Second)
		if err != nil || len(parts) != 3 || string(parts[0]) != protocol.VerbStart {
			return
		}
		if nogo {
			r.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbNogo), []byte("0")}, time.Second)
			return
		}
		chunkSize := 4
		r.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbGogo), protocol.FormatUint(uint64(chunkSize))}, time.Second)

		received := make([]byte, 0, len(data))
		for len(received) < len(data) {
			r.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbToken)}, time.Second)
			_, parts, err = r.RecvMultipart(5 * time.Second)
			if err != nil || len(parts) != 2 || string(parts[0]) != protocol.VerbChunk {
				return
			}
			received = append(received, parts[1]...)
		}

		_, parts, err = r.RecvMultipart(5 * time.Second)
		if err != nil || len(parts) != 2 || string(parts[0]) != protocol.VerbEnd {
			return
		}
		sum := sha256.Sum256(received)
		if hex.EncodeToString(sum[:]) != string(parts[1]) {
			r.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbFail), []byte("Hash mismatch")}, time.Second)
			return
		}
		r.SendMultipart(senderID, [][]byte{{}, []byte(protocol.VerbOK), []byte("Great success")}, time.Second)
	}()
}

func TestSendBlobSuccess(t *testing.T) {
	r, err := wire.NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	data := []byte("ermahgerd")
	fakeReceiver(t, r, data, false)

	var progressSeen []string
	res, err := SendBlob(context.Background(), []byte("blob-1"), data, Options{
		Endpoint: "tcp://" + r.Addr().String(),
		Timeout:  2 * time.Second,
		OnProgress: func(text string) {
			progressSeen = append(progressSeen, text)
		},
	})
	if err != nil {
		t.Fatalf("SendBlob: %v", err)
	}
	if res.ConsistentBytes != nil {
		t.Fatalf("expected no consistent bytes when not requested")
	}
	if len(progressSeen) == 0 {
		t.Fatalf("expected at least one progress callback")
	}
	if progressSeen[len(progressSeen)-1] != "Progress: 100%" {
		t.Fatalf("expected final progress of 100%%, got %q", progressSeen[len(progressSeen)-1])
	}
}

func TestSendBlobDeclined(t *testing.T) {
	r, err := wire.NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	fakeReceiver(t, r, []byte("x"), true)

	_, err = SendBlob(context.Background(), []byte("blob-1"), []byte("x"), Options{
		Endpoint: "tcp://" + r.Addr().String(),
		Timeout:  2 * time.Second,
	})
	if !werrors.IsDeclined(err) {
		t.Fatalf("expected a declined error, got %v", err)
	}
}

func TestSendBlobEmptyChunkTail(t *testing.T) {
	r, err := wire.NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	data := []byte("abcdefgh") // exactly 2 chunks of 4, no short final chunk
	fakeReceiver(t, r, data, false)

	_, err = SendBlob(context.Background(), []byte("blob-2"), data, Options{
		Endpoint: "tcp://" + r.Addr().String(),
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("SendBlob: %v", err)
	}
}
