package network

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drake/vty/keystroke"
)

// Stats holds transport counters for monitoring.
type Stats struct {
	Conns        int
	BytesRead    uint64
	BytesWritten uint64
	KeysDecoded  uint64
	LastReadTime time.Time
}

// Handler runs one terminal session. The Conn belongs to the handler
// alone for the duration of the call.
type Handler interface {
	ServeTerminal(ctx context.Context, c *Conn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, c *Conn)

// ServeTerminal calls f.
func (f HandlerFunc) ServeTerminal(ctx context.Context, c *Conn) { f(ctx, c) }

// Server accepts telnet connections and hands each one, wrapped as a
// Conn, to its Handler.
type Server struct {
	handler Handler

	mu    sync.Mutex
	ln    net.Listener
	conns map[*Conn]struct{}

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	keysDecoded  atomic.Uint64
	lastReadTime atomic.Int64 // Unix nano
}

// NewServer creates a Server with the given session handler.
func NewServer(handler Handler) *Server {
	return &Server{
		handler: handler,
		conns:   make(map[*Conn]struct{}),
	}
}

// Listen starts accepting on address. It returns once the listener is
// bound; sessions run in their own goroutines until ctx is cancelled
// or Close is called.
func (s *Server) Listen(ctx context.Context, address string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go s.acceptLoop(ctx, ln)
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops the listener and closes every live session.
func (s *Server) Close() {
	s.mu.Lock()
	if s.ln != nil {
		s.ln.Close()
		s.ln = nil
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
}

// Stats returns current transport counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := len(s.conns)
	s.mu.Unlock()

	lastRead := time.Unix(0, s.lastReadTime.Load())
	if lastRead.UnixNano() == 0 {
		lastRead = time.Time{}
	}
	return Stats{
		Conns:        n,
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
		KeysDecoded:  s.keysDecoded.Load(),
		LastReadTime: lastRead,
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}

		if tcp, ok := nc.(*net.TCPConn); ok {
			tcp.SetKeepAlive(true)
			tcp.SetKeepAlivePeriod(30 * time.Second)
		}

		c := s.newConn(nc)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		go func() {
			defer func() {
				c.Close()
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
			}()
			s.handler.ServeTerminal(ctx, c)
		}()
	}
}

// Conn is one telnet terminal connection. It feeds raw socket bytes
// through a keystroke stream and answers option negotiation
// transparently, so its owner only ever sees real keystrokes.
//
// A Conn is owned by a single session goroutine; only Close and the
// write path are safe to call from elsewhere.
type Conn struct {
	conn   net.Conn
	srv    *Server
	stream *keystroke.Stream
	neg    *Negotiator

	buf []byte

	wmu       sync.Mutex
	closeOnce sync.Once
}

func (s *Server) newConn(nc net.Conn) *Conn {
	return &Conn{
		conn:   nc,
		srv:    s,
		stream: keystroke.New(0x9B),
		neg:    NewNegotiator(),
		buf:    make([]byte, 4096),
	}
}

// NewConn wraps an existing connection (tests, in-memory pipes).
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		conn:   nc,
		stream: keystroke.New(0x9B),
		neg:    NewNegotiator(),
		buf:    make([]byte, 4096),
	}
}

// Open sends the initial option solicitation.
func (c *Conn) Open() error {
	return c.write(c.neg.Open())
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Negotiator exposes the connection's option state (window size,
// terminal type).
func (c *Conn) Negotiator() *Negotiator {
	return c.neg
}

// Pump performs one blocking socket read and feeds the bytes into the
// keystroke stream. A read error or EOF signals EOF to the stream and
// is returned. The steal slot, if non-nil, is passed through to the
// stream (see keystroke.Stream.Input).
func (c *Conn) Pump(steal *keystroke.Keystroke) error {
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		if c.srv != nil {
			c.srv.bytesRead.Add(uint64(n))
			c.srv.lastReadTime.Store(time.Now().UnixNano())
		}
		c.stream.Input(c.buf[:n], steal)
	}
	if err != nil {
		c.stream.Input(nil, steal)
		return err
	}
	return nil
}

// Next fetches the next keystroke, answering telnet commands along
// the way so the caller never sees them. It returns false when the
// stream has nothing buffered; k then tells EOF from no-data-yet.
func (c *Conn) Next(k *keystroke.Keystroke) bool {
	for {
		if !c.stream.Get(k) {
			return false
		}
		if k.Type != keystroke.IAC {
			if c.srv != nil {
				c.srv.keysDecoded.Add(1)
			}
			return true
		}
		if reply := c.neg.HandleIAC(k); len(reply) > 0 {
			c.write(reply)
		}
	}
}

// SetEOF force-drops the connection's pending input, partial
// sequences included.
func (c *Conn) SetEOF() {
	c.stream.SetEOF()
}

// AtEOF reports whether the input side is fully drained and closed.
func (c *Conn) AtEOF() bool {
	return c.stream.EOF()
}

// Write sends data, doubling any IAC bytes for the wire.
func (c *Conn) Write(data []byte) error {
	return c.write(EscapeIAC(data))
}

// WriteString sends text, translating bare newlines to CR LF.
func (c *Conn) WriteString(text string) error {
	out := make([]byte, 0, len(text)+8)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && (i == 0 || text[i-1] != '\r') {
			out = append(out, '\r')
		}
		out = append(out, text[i])
	}
	return c.Write(out)
}

// write sends raw bytes with a short deadline so a stalled peer
// cannot wedge the session.
func (c *Conn) write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	n, err := c.conn.Write(data)
	c.conn.SetWriteDeadline(time.Time{})

	if c.srv != nil {
		c.srv.bytesWritten.Add(uint64(n))
	}
	return err
}

// Close shuts the socket down exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}
