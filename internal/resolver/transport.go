package resolver

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/ldevaal/wiredns/internal/helpers"
	"github.com/ldevaal/wiredns/internal/pool"
)

// udpRecvSize is the receive buffer for UDP responses. EDNS answers
// advertise at most 1232 bytes on our side; 4096 leaves room for
// servers that send more anyway.
const udpRecvSize = 4096

// recvBuffers recycles receive buffers across exchanges; responses are
// copied out before the buffer goes back.
var recvBuffers = pool.New(func() []byte {
	return make([]byte, udpRecvSize)
})

// Transport moves wire-format messages to a nameserver and back. The
// Resolver owns retry, truncation, and response-matching policy;
// implementations only move bytes. A mock Transport substitutes for the
// network in tests.
type Transport interface {
	// Exchange performs one blocking request/response round trip.
	// network is "udp" or "tcp"; TCP messages are 2-byte length framed
	// (RFC 1035 Section 4.2.2).
	Exchange(ctx context.Context, network, addr string, query []byte) ([]byte, error)

	// Send transmits one UDP datagram and returns a handle to collect
	// the response later. No retries, no truncation fallback.
	Send(ctx context.Context, addr string, query []byte) (Handle, error)

	// Stream sends a query over TCP and returns a reader over the
	// length-framed message stream the server answers with (AXFR).
	Stream(ctx context.Context, addr string, query []byte) (MessageStream, error)

	// Close releases any persistent connections.
	Close() error
}

// Handle is an in-flight background query. Closing it is the
// cancellation mechanism: it releases the socket and unblocks Read on
// every path.
type Handle interface {
	// Ready reports without blocking whether Read would return now.
	Ready() bool

	// Read blocks until the response datagram (or the failure that ends
	// the wait) arrives.
	Read() ([]byte, error)

	// Close cancels the query and releases its resources. Safe to call
	// multiple times and after Read.
	Close() error
}

// MessageStream yields consecutive length-framed messages from one TCP
// connection.
type MessageStream interface {
	// Next returns the next message, or an error; io.EOF when the
	// server closes the connection cleanly.
	Next() ([]byte, error)

	Close() error
}

// netTransport is the production Transport. It dials through a
// proxy.ContextDialer so SOCKS or custom dialers slot in unchanged.
//
// Persistent mode keeps one UDP socket globally and one TCP connection
// per destination; a connection that errors is discarded and redialed
// on the next use.
type netTransport struct {
	dialer        proxy.ContextDialer
	udpTimeout    time.Duration
	tcpTimeout    time.Duration
	localAddr     string
	persistentUDP bool
	persistentTCP bool

	mu      sync.Mutex
	udpConn net.Conn
	udpDest string
	tcpConn map[string]net.Conn
}

func newNetTransport(cfg Config, dialer proxy.ContextDialer) *netTransport {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	local := ""
	if cfg.SrcAddr != "" || cfg.SrcPort != 0 {
		local = net.JoinHostPort(cfg.SrcAddr, fmt.Sprint(cfg.SrcPort))
	}
	return &netTransport{
		dialer:        dialer,
		udpTimeout:    cfg.UDPTimeout,
		tcpTimeout:    cfg.TCPTimeout,
		localAddr:     local,
		persistentUDP: cfg.PersistentUDP,
		persistentTCP: cfg.StayOpen,
		tcpConn:       map[string]net.Conn{},
	}
}

func (t *netTransport) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if t.localAddr != "" {
		if d, ok := t.dialer.(*net.Dialer); ok {
			bound := *d
			var err error
			if network == "udp" {
				bound.LocalAddr, err = net.ResolveUDPAddr(network, t.localAddr)
			} else {
				bound.LocalAddr, err = net.ResolveTCPAddr(network, t.localAddr)
			}
			if err != nil {
				return nil, err
			}
			return bound.DialContext(ctx, network, addr)
		}
	}
	return t.dialer.DialContext(ctx, network, addr)
}

// Exchange implements Transport.
func (t *netTransport) Exchange(ctx context.Context, network, addr string, query []byte) ([]byte, error) {
	switch network {
	case "udp":
		return t.exchangeUDP(ctx, addr, query)
	case "tcp":
		return t.exchangeTCP(ctx, addr, query)
	}
	return nil, fmt.Errorf("unsupported network %q", network)
}

func (t *netTransport) exchangeUDP(ctx context.Context, addr string, query []byte) ([]byte, error) {
	conn, persistent, err := t.acquireUDP(ctx, addr)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() { t.releaseUDP(conn, persistent, ok) }()

	if err := conn.SetDeadline(deadline(ctx, t.udpTimeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(query); err != nil {
		return nil, err
	}
	buf := recvBuffers.Get()
	defer recvBuffers.Put(buf)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	ok = true
	resp := make([]byte, n)
	copy(resp, buf[:n])
	return resp, nil
}

func (t *netTransport) acquireUDP(ctx context.Context, addr string) (net.Conn, bool, error) {
	if t.persistentUDP {
		t.mu.Lock()
		if t.udpConn != nil && t.udpDest == addr {
			conn := t.udpConn
			t.mu.Unlock()
			return conn, true, nil
		}
		if t.udpConn != nil {
			_ = t.udpConn.Close()
			t.udpConn = nil
		}
		t.mu.Unlock()
	}
	conn, err := t.dial(ctx, "udp", addr)
	if err != nil {
		return nil, false, err
	}
	if t.persistentUDP {
		t.mu.Lock()
		t.udpConn, t.udpDest = conn, addr
		t.mu.Unlock()
		return conn, true, nil
	}
	return conn, false, nil
}

func (t *netTransport) releaseUDP(conn net.Conn, persistent, ok bool) {
	if persistent && ok {
		return
	}
	_ = conn.Close()
	if persistent {
		t.mu.Lock()
		if t.udpConn == conn {
			t.udpConn = nil
		}
		t.mu.Unlock()
	}
}

func (t *netTransport) exchangeTCP(ctx context.Context, addr string, query []byte) ([]byte, error) {
	conn, persistent, err := t.acquireTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() { t.releaseTCP(addr, conn, persistent, ok) }()

	if err := conn.SetDeadline(deadline(ctx, t.tcpTimeout)); err != nil {
		return nil, err
	}
	if err := writeFramed(conn, query); err != nil {
		return nil, err
	}
	resp, err := readFramed(conn)
	if err != nil {
		return nil, err
	}
	ok = true
	return resp, nil
}

func (t *netTransport) acquireTCP(ctx context.Context, addr string) (net.Conn, bool, error) {
	if t.persistentTCP {
		t.mu.Lock()
		if conn, exists := t.tcpConn[addr]; exists {
			t.mu.Unlock()
			return conn, true, nil
		}
		t.mu.Unlock()
	}
	conn, err := t.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, false, err
	}
	if t.persistentTCP {
		t.mu.Lock()
		t.tcpConn[addr] = conn
		t.mu.Unlock()
		return conn, true, nil
	}
	return conn, false, nil
}

func (t *netTransport) releaseTCP(addr string, conn net.Conn, persistent, ok bool) {
	if persistent && ok {
		return
	}
	_ = conn.Close()
	if persistent {
		t.mu.Lock()
		if t.tcpConn[addr] == conn {
			delete(t.tcpConn, addr)
		}
		t.mu.Unlock()
	}
}

// Send implements Transport. The returned handle owns the socket;
// persistent-UDP mode is not used here because the socket's lifetime is
// the caller's to end.
func (t *netTransport) Send(ctx context.Context, addr string, query []byte) (Handle, error) {
	conn, err := t.dial(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(query); err != nil {
		_ = conn.Close()
		return nil, err
	}
	h := &udpHandle{conn: conn, ready: make(chan struct{})}
	go h.receive(deadline(ctx, t.udpTimeout))
	return h, nil
}

type udpHandle struct {
	conn      net.Conn
	ready     chan struct{}
	resp      []byte
	err       error
	closeOnce sync.Once
}

func (h *udpHandle) receive(dl time.Time) {
	_ = h.conn.SetReadDeadline(dl)
	buf := recvBuffers.Get()
	defer recvBuffers.Put(buf)
	n, err := h.conn.Read(buf)
	if err != nil {
		h.err = err
	} else {
		h.resp = make([]byte, n)
		copy(h.resp, buf[:n])
	}
	close(h.ready)
}

func (h *udpHandle) Ready() bool {
	select {
	case <-h.ready:
		return true
	default:
		return false
	}
}

func (h *udpHandle) Read() ([]byte, error) {
	<-h.ready
	return h.resp, h.err
}

func (h *udpHandle) Close() error {
	var err error
	h.closeOnce.Do(func() { err = h.conn.Close() })
	return err
}

// Stream implements Transport. Always a fresh connection: a transfer
// monopolizes the stream until its terminating record.
func (t *netTransport) Stream(ctx context.Context, addr string, query []byte) (MessageStream, error) {
	conn, err := t.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(deadline(ctx, t.tcpTimeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := writeFramed(conn, query); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &tcpStream{conn: conn}, nil
}

type tcpStream struct {
	conn net.Conn
}

func (s *tcpStream) Next() ([]byte, error) { return readFramed(s.conn) }
func (s *tcpStream) Close() error          { return s.conn.Close() }

// Close implements Transport.
func (t *netTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.udpConn != nil {
		_ = t.udpConn.Close()
		t.udpConn = nil
	}
	for addr, conn := range t.tcpConn {
		_ = conn.Close()
		delete(t.tcpConn, addr)
	}
	return nil
}

// writeFramed sends a 2-byte big-endian length prefix followed by the
// message (RFC 1035 Section 4.2.2).
func writeFramed(conn net.Conn, msg []byte) error {
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], helpers.ClampIntToUint16(len(msg)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return err
	}
	_, err := conn.Write(msg)
	return err
}

// readFramed reads one length-framed message.
func readFramed(conn net.Conn) ([]byte, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(prefix[:]))
	if length == 0 {
		return nil, fmt.Errorf("zero-length TCP message")
	}
	msg := make([]byte, length)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// deadline combines the configured timeout with any earlier context
// deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		dl = ctxDL
	}
	return dl
}
