package wire

// Multipart framing over a raw net.Conn.
//
// Each frame on the wire is:
//
//	[1 byte more-flag][4 byte big-endian length][payload]
//
// A multipart message is a run of frames where every frame but the last has
// more=1; the last has more=0. There is no message-level length prefix: a
// reader keeps consuming frames until it sees more=0.

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/alxayo/blobxfer/internal/bufpool"
)

const frameHeaderSize = 5 // 1 byte more-flag + 4 byte length

func writeMultipart(w io.Writer, parts [][]byte) error {
	for i, p := range parts {
		more := byte(0)
		if i < len(parts)-1 {
			more = 1
		}
		var hdr [frameHeaderSize]byte
		hdr[0] = more
		binary.BigEndian.PutUint32(hdr[1:], uint32(len(p)))
		if err := writeFull(w, hdr[:]); err != nil {
			return err
		}
		if len(p) > 0 {
			if err := writeFull(w, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// readMultipart drains frames until more==0. maxFrameSize<=0 means
// unbounded; otherwise a frame whose declared length exceeds it fails
// closed, mirroring a transport-level max_message_size rejection.
// Non-empty payload frames are drawn from bufpool so a CHUNK-sized frame
// doesn't force a fresh allocation on every receive; a caller done with a
// part it knows came from a size class may return it via bufpool.Put.
func readMultipart(r io.Reader, maxFrameSize int) ([][]byte, error) {
	var parts [][]byte
	for {
		var hdr [frameHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		more := hdr[0]
		n := binary.BigEndian.Uint32(hdr[1:])
		if maxFrameSize > 0 && int(n) > maxFrameSize {
			return nil, fmt.Errorf("frame length %d exceeds max message size %d", n, maxFrameSize)
		}
		var buf []byte
		if n > 0 {
			buf = bufpool.Get(int(n))
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
		}
		parts = append(parts, buf)
		if more == 0 {
			return parts, nil
		}
	}
}

func writeFull(w io.Writer, b []byte) error {
	off := 0
	for off < len(b) {
		n, err := w.Write(b[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}
