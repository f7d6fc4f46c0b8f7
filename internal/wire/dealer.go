package wire

// Dealer is the sender-side transport wrapper: a single outbound
// connection, a running deadline, and bounded poll/send/recv operations.
// It is the Go realization of spec.md's §4.1 transport wrapper for the
// DEALER role.

import (
	"bufio"
	"net"
	"time"

	werrors "github.com/alxayo/blobxfer/internal/errors"
)

// PollEvent selects which readiness a Poll call waits for.
type PollEvent int

const (
	PollRead PollEvent = iota
	PollWrite
)

// Dealer owns one net.Conn dialed to a single receiver endpoint.
type Dealer struct {
	conn     net.Conn
	r        *bufio.Reader
	deadline time.Time // zero value means unbounded
}

// NewDealer dials endpoint and records an absolute deadline of now+timeout.
// timeout<=0 means unbounded (no overall deadline).
func NewDealer(endpoint string, timeout time.Duration) (*Dealer, error) {
	conn, err := dial(endpoint)
	if err != nil {
		return nil, werrors.NewTransportError("dealer.dial", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	d := &Dealer{conn: conn, r: bufio.NewReader(conn)}
	if timeout > 0 {
		d.deadline = time.Now().Add(timeout)
	}
	return d, nil
}

// remaining returns the lesser of optional and the time left until the
// wrapper's own deadline. A non-positive return means "already expired".
func (d *Dealer) remaining(optional time.Duration) time.Duration {
	if d.deadline.IsZero() {
		if optional <= 0 {
			return time.Hour // effectively unbounded for a single poll call
		}
		return optional
	}
	left := time.Until(d.deadline)
	if optional > 0 && optional < left {
		return optional
	}
	return left
}

// Poll waits until the requested event is ready or the bounded timeout
// elapses. It returns 0 with a nil error on timeout, matching the spec's
// "count==0 means timeout" contract.
func (d *Dealer) Poll(optional time.Duration, event PollEvent) (int, error) {
	budget := d.remaining(optional)
	if budget <= 0 {
		return 0, nil
	}
	switch event {
	case PollWrite:
		// net.Conn exposes no cheap writable-readiness probe without raw
		// syscalls; a TCP/unix socket is writable in practice unless the
		// peer's receive buffer is saturated, which our credit scheme
		// prevents for chunk-sized payloads. Treat "budget remains" as
		// "writable".
		return 1, nil
	default:
		if err := d.conn.SetReadDeadline(time.Now().Add(budget)); err != nil {
			return 0, werrors.NewTransportError("dealer.poll.setdeadline", err)
		}
		_, err := d.r.Peek(1)
		_ = d.conn.SetReadDeadline(time.Time{})
		if err == nil {
			return 1, nil
		}
		if werrors.IsTimeout(err) {
			return 0, nil
		}
		return 0, werrors.NewTransportError("dealer.poll", err)
	}
}

// SendMultipart polls for writability, then emits parts with every frame
// but the last marked more-to-follow.
func (d *Dealer) SendMultipart(parts [][]byte, optional time.Duration) error {
	n, err := d.Poll(optional, PollWrite)
	if err != nil {
		return err
	}
	if n == 0 {
		return werrors.NewTimeoutError("dealer.send", optional, nil)
	}
	budget := d.remaining(optional)
	if budget <= 0 {
		return werrors.NewTimeoutError("dealer.send", optional, nil)
	}
	if err := d.conn.SetWriteDeadline(time.Now().Add(budget)); err != nil {
		return werrors.NewTransportError("dealer.send.setdeadline", err)
	}
	if err := writeMultipart(d.conn, parts); err != nil {
		if werrors.IsTimeout(err) {
			return werrors.NewTimeoutError("dealer.send", budget, err)
		}
		return werrors.NewTransportError("dealer.send", err)
	}
	return nil
}

// RecvMultipart polls for readability, then drains one multipart message.
func (d *Dealer) RecvMultipart(optional time.Duration) ([][]byte, error) {
	n, err := d.Poll(optional, PollRead)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, werrors.NewTimeoutError("dealer.recv", optional, nil)
	}
	budget := d.remaining(optional)
	if budget <= 0 {
		return nil, werrors.NewTimeoutError("dealer.recv", optional, nil)
	}
	if err := d.conn.SetReadDeadline(time.Now().Add(budget)); err != nil {
		return nil, werrors.NewTransportError("dealer.recv.setdeadline", err)
	}
	parts, err := readMultipart(d.r, 0)
	if err != nil {
		if werrors.IsTimeout(err) {
			return nil, werrors.NewTimeoutError("dealer.recv", budget, err)
		}
		return nil, werrors.NewTransportError("dealer.recv", err)
	}
	return parts, nil
}

// Close tears the dealer down: socket close first, unconditionally. A
// failure here indicates a programmer error (double close, already-stolen
// fd) and is returned verbatim rather than swallowed.
func (d *Dealer) Close() error {
	if err := d.conn.Close(); err != nil {
		return werrors.NewTransportError("dealer.close", err)
	}
	return nil
}
