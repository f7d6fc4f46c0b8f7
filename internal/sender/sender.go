// Package sender drives exactly one blob transfer from the sending side:
// handshake, negotiate, stream, finalize, and the optional consistent-mode
// tail. All transfer state, including the connection, exists only for the
// duration of one SendBlob call.
package sender

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"time"

	werrors "github.com/alxayo/blobxfer/internal/errors"
	"github.com/alxayo/blobxfer/internal/protocol"
	"github.com/alxayo/blobxfer/internal/wire"
)

// OnProgress is invoked after every chunk is sent with a human-readable
// percent string, e.g. "Progress: 37%".
type OnProgress func(text string)

// Options configures one SendBlob call.
type Options struct {
	Endpoint   string
	Timeout    time.Duration // overall deadline for the whole transfer
	Consistent bool          // request the consistent-mode tail reply
	OnProgress OnProgress
}

// Result is what SendBlob returns on success.
type Result struct {
	// ConsistentBytes carries the third frame of a CONS tail reply when
	// Options.Consistent was set; empty otherwise.
	ConsistentBytes []byte
}

// SendBlob pushes data to the receiver at opts.Endpoint under blobID,
// driving the full HANDSHAKE -> NEGOTIATE -> STREAM -> FINALIZE state
// machine. ctx is honored between chunks only; the overall deadline is
// enforced by the transport wrapper's own timeout, per spec.
func SendBlob(ctx context.Context, blobID []byte, data []byte, opts Options) (Result, error) {
	if opts.Timeout <= 0 {
		return Result{}, fmt.Errorf("sender: timeout must be positive")
	}

	d, err := wire.NewDealer(opts.Endpoint, opts.Timeout)
	if err != nil {
		return Result{}, err
	}
	defer d.Close()

	if err := handshake(d); err != nil {
		return Result{}, err
	}

	chunkSize, err := negotiate(d, blobID, len(data))
	if err != nil {
		return Result{}, err
	}

	hasher := sha256.New()
	if err := stream(ctx, d, data, chunkSize, hasher, opts.OnProgress); err != nil {
		return Result{}, err
	}

	consistentBytes, err := finalize(d, hasher, opts.Consistent)
	if err != nil {
		return Result{}, err
	}

	return Result{ConsistentBytes: consistentBytes}, nil
}

func handshake(d *wire.Dealer) error {
	if err := d.SendMultipart([][]byte{[]byte(protocol.VerbPing)}, protocol.PingTimeout); err != nil {
		return err
	}
	reply, err := d.RecvMultipart(protocol.PingTimeout)
	if err != nil {
		return err
	}
	if len(reply) != 2 || len(reply[0]) != 0 || string(reply[1]) != protocol.VerbPong {
		return werrors.NewInvalidResponseError("sender.handshake", fmt.Errorf("unexpected reply %q", reply))
	}
	return nil
}

func negotiate(d *wire.Dealer, blobID []byte, size int) (int, error) {
	msg := [][]byte{
		[]byte(protocol.VerbStart),
		blobID,
		protocol.FormatUint(uint64(size)),
	}
	if err := d.SendMultipart(msg, 0); err != nil {
		return 0, err
	}
	reply, err := d.RecvMultipart(0)
	if err != nil {
		return 0, err
	}
	if len(reply) != 3 {
		return 0, werrors.NewInvalidResponseError("sender.negotiate", fmt.Errorf("expected 3 frames, got %d", len(reply)))
	}
	switch string(reply[1]) {
	case protocol.VerbGogo:
		chunkSize, err := protocol.ParseUint(reply[2])
		if err != nil {
			return 0, werrors.NewInvalidResponseError("sender.negotiate", err)
		}
		return int(chunkSize), nil
	case protocol.VerbNogo:
		return 0, werrors.NewDeclinedError(string(reply[2]))
	default:
		return 0, werrors.NewInvalidResponseError("sender.negotiate", fmt.Errorf("unexpected verb %q", reply[1]))
	}
}

func stream(ctx context.Context, d *wire.Dealer, data []byte, chunkSize int, hasher hash.Hash, onProgress OnProgress) error {
	total := len(data)
	sent := 0
	for offset := 0; offset < total; {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := offset + chunkSize
		if end > total {
			end = total
		}
		chunk := data[offset:end]

		reply, err := d.RecvMultipart(0)
		if err != nil {
			return err
		}
		if len(reply) < 2 || string(reply[1]) != protocol.VerbToken {
			return werrors.NewInvalidResponseError("sender.stream", fmt.Errorf("expected TOKEN, got %q", reply))
		}

		if err := d.SendMultipart([][]byte{[]byte(protocol.VerbChunk), chunk}, 0); err != nil {
			return err
		}
		hasher.Write(chunk)
		sent += len(chunk)
		offset = end

		if onProgress != nil {
			onProgress(fmt.Sprintf("Progress: %d%%", 100*sent/total))
		}
	}
	return nil
}

func finalize(d *wire.Dealer, hasher hash.Hash, consistent bool) ([]byte, error) {
	hexHash := hex.EncodeToString(hasher.Sum(nil))
	if err := d.SendMultipart([][]byte{[]byte(protocol.VerbEnd), []byte(hexHash)}, 0); err != nil {
		return nil, err
	}
	for {
		reply, err := d.RecvMultipart(0)
		if err != nil {
			return nil, err
		}
		if len(reply) >= 2 && string(reply[1]) == protocol.VerbToken {
			continue // benign race: receiver may have prefetched credits
		}
		if len(reply) < 2 || string(reply[1]) != protocol.VerbOK {
			return nil, werrors.NewInvalidResponseError("sender.finalize", fmt.Errorf("expected OK, got %q", reply))
		}
		break
	}
	if !consistent {
		return nil, nil
	}
	reply, err := d.RecvMultipart(0)
	if err != nil {
		return nil, err
	}
	if len(reply) != 3 || string(reply[1]) != protocol.VerbCons {
		return nil, werrors.NewInvalidResponseError("sender.finalize", fmt.Errorf("expected CONS tail, got %q", reply))
	}
	return reply[2], nil
}
