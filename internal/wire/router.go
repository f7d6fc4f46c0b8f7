package wire

// Router is the receiver-side transport wrapper: a listener accepting many
// peer connections, each identified by an opaque sender_id, multiplexed
// into a single recv stream the way a ZeroMQ ROUTER socket multiplexes many
// DEALER peers behind one fd. Since this module has no access to a routed
// message-queue library, each peer gets its own net.Conn and the identity
// is the map key rather than a literal frame on the wire (spec.md's visible
// frame tables never include an identity frame — only the empty delimiter
// that ROUTER replies carry — so this is a transparent substitution).

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	werrors "github.com/alxayo/blobxfer/internal/errors"
	"github.com/google/uuid"
)

// inboundMsg is one fully-framed multipart message attributed to a peer.
type inboundMsg struct {
	senderID string
	parts    [][]byte
	err      error // non-nil means this peer's connection died
}

type peer struct {
	id      string
	conn    net.Conn
	addr    string
	writeMu sync.Mutex
}

// Router accepts connections on endpoint and multiplexes their multipart
// messages into a single bounded Recv call.
type Router struct {
	ln            net.Listener
	deadline      time.Time // zero means unbounded; receivers normally run this way
	maxFrameSize  int
	mu            sync.Mutex
	peers         map[string]*peer
	inbox         chan inboundMsg
	notify        chan struct{}
	acceptDone    chan struct{}
	closeOnce     sync.Once
	onPeerRemoved func(senderID string)
}

// NewRouter listens on endpoint and begins accepting peers in the
// background. timeout<=0 means the router itself never expires (the normal
// receiver case; per-session liveness is governed by Blob TTL, not this
// wrapper's own deadline). maxFrameSize<=0 disables the per-frame cap.
func NewRouter(endpoint string, timeout time.Duration, maxFrameSize int) (*Router, error) {
	ln, err := listen(endpoint)
	if err != nil {
		return nil, werrors.NewTransportError("router.listen", err)
	}
	r := &Router{
		ln:           ln,
		maxFrameSize: maxFrameSize,
		peers:        make(map[string]*peer),
		inbox:        make(chan inboundMsg, 256),
		notify:       make(chan struct{}, 1),
		acceptDone:   make(chan struct{}),
	}
	if timeout > 0 {
		r.deadline = time.Now().Add(timeout)
	}
	go r.acceptLoop()
	return r, nil
}

// Addr returns the bound listener address.
func (r *Router) Addr() net.Addr { return r.ln.Addr() }

// OnPeerRemoved registers a callback invoked whenever a peer connection is
// torn down (error or explicit Drop), so the receiver can prune its blob
// table eagerly instead of waiting for TTL.
func (r *Router) OnPeerRemoved(fn func(senderID string)) { r.onPeerRemoved = fn }

func (r *Router) acceptLoop() {
	defer close(r.acceptDone)
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return // listener closed; fatal per spec.md (global, not per-session)
		}
		id := uuid.NewString()
		p := &peer{id: id, conn: conn, addr: conn.RemoteAddr().String()}
		r.mu.Lock()
		r.peers[id] = p
		r.mu.Unlock()
		go r.readLoop(p)
	}
}

func (r *Router) readLoop(p *peer) {
	br := bufio.NewReader(p.conn)
	for {
		parts, err := readMultipart(br, r.maxFrameSize)
		if err != nil {
			r.removePeer(p.id)
			if err != io.EOF {
				r.push(inboundMsg{senderID: p.id, err: werrors.NewTransportError("router.recv", err)})
			}
			return
		}
		r.push(inboundMsg{senderID: p.id, parts: parts})
	}
}

func (r *Router) push(m inboundMsg) {
	r.inbox <- m
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Router) removePeer(id string) {
	r.mu.Lock()
	p, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	r.mu.Unlock()
	if ok {
		_ = p.conn.Close()
	}
	if r.onPeerRemoved != nil {
		r.onPeerRemoved(id)
	}
}

func (r *Router) remaining(optional time.Duration) time.Duration {
	if r.deadline.IsZero() {
		if optional <= 0 {
			return time.Hour
		}
		return optional
	}
	left := time.Until(r.deadline)
	if optional > 0 && optional < left {
		return optional
	}
	return left
}

// Poll waits for a message to be queued (level-triggered: it does not
// consume anything) or for the bounded timeout to elapse. Once the accept
// loop has ended (listener closed or Accept failed) it returns a
// TransportError instead.
func (r *Router) Poll(optional time.Duration) (int, error) {
	select {
	case <-r.acceptDone:
		return 0, werrors.NewTransportError("router.accept", fmt.Errorf("listener no longer accepting connections"))
	default:
	}
	budget := r.remaining(optional)
	if budget <= 0 {
		return 0, nil
	}
	if len(r.inbox) > 0 {
		return 1, nil
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case <-r.notify:
		return 1, nil
	case <-timer.C:
		return 0, nil
	}
}

// RecvMultipart returns the next queued message, its originating peer
// identity, and any terminal error for that peer's connection.
func (r *Router) RecvMultipart(optional time.Duration) (senderID string, parts [][]byte, err error) {
	n, perr := r.Poll(optional)
	if perr != nil {
		return "", nil, perr
	}
	if n == 0 {
		return "", nil, werrors.NewTimeoutError("router.recv", optional, nil)
	}
	m := <-r.inbox
	return m.senderID, m.parts, m.err
}

// SendMultipart writes parts to the given peer's connection. A missing
// peer (already disconnected, e.g. raced with TTL reap) is reported but is
// not a fatal condition for the router.
func (r *Router) SendMultipart(senderID string, parts [][]byte, timeout time.Duration) error {
	r.mu.Lock()
	p, ok := r.peers[senderID]
	r.mu.Unlock()
	if !ok {
		return werrors.NewTransportError("router.send", fmt.Errorf("unknown peer %q", senderID))
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if timeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := writeMultipart(p.conn, parts); err != nil {
		return werrors.NewTransportError("router.send", err)
	}
	return nil
}

// Close tears down the listener and every peer connection. Per spec.md a
// close failure on the primary socket is a programmer error; it is
// returned so the caller can treat it as fatal.
func (r *Router) Close() error {
	var closeErr error
	r.closeOnce.Do(func() {
		closeErr = r.ln.Close()
		<-r.acceptDone
		r.mu.Lock()
		peers := make([]*peer, 0, len(r.peers))
		for _, p := range r.peers {
			peers = append(peers, p)
		}
		r.peers = make(map[string]*peer)
		r.mu.Unlock()
		for _, p := range peers {
			_ = p.conn.Close()
		}
	})
	if closeErr != nil {
		return werrors.NewTransportError("router.close", closeErr)
	}
	return nil
}
