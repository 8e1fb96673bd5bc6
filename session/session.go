// Package session runs one interactive terminal session: it pumps the
// connection's keystroke stream, drives the line editor, consults the
// scripting engine, and hands completed command lines to a Handler.
package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/drake/vty/editor"
	"github.com/drake/vty/engine"
	"github.com/drake/vty/event"
	"github.com/drake/vty/internal/buffer"
	"github.com/drake/vty/keystroke"
	"github.com/drake/vty/network"
	"github.com/drake/vty/timer"
)

// Handler interprets completed command lines.
type Handler interface {
	HandleLine(s *Session, line string)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(s *Session, line string)

// HandleLine calls f.
func (f HandlerFunc) HandleLine(s *Session, line string) { f(s, line) }

// Config holds session parameters.
type Config struct {
	Prompt      string
	IdleTimeout time.Duration // 0 = never
	History     int           // history depth; 0 = default

	// Login, if set, runs once after the telnet options are solicited
	// and before the first prompt. Returning an error ends the
	// session; password prompts belong here.
	Login func(s *Session) error
}

// Stats holds session counters for monitoring.
type Stats struct {
	KeysApplied uint64
	LinesRead   uint64
	Started     time.Time
	Timers      int
}

// Session owns one connection. It is single-threaded: the whole
// keystroke path runs in the goroutine that calls Run, which is what
// the keystroke stream's ownership model requires.
type Session struct {
	conn    *network.Conn
	ed      *editor.Editor
	eng     *engine.Engine
	handler Handler

	prompt      string
	idleTimeout time.Duration
	login       func(s *Session) error

	timers   *timer.Service
	eventsIn chan<- event.Event

	keysApplied uint64
	linesRead   uint64
	started     time.Time

	idleTimer int
	quitting  bool
}

// New creates a session over the given connection.
func New(conn *network.Conn, handler Handler, cfg Config) *Session {
	depth := cfg.History
	if depth == 0 {
		depth = 100
	}
	s := &Session{
		conn:        conn,
		ed:          editor.New(editor.NewHistory(depth)),
		handler:     handler,
		prompt:      cfg.Prompt,
		idleTimeout: cfg.IdleTimeout,
		login:       cfg.Login,
		started:     time.Now(),
	}
	if s.prompt == "" {
		s.prompt = "> "
	}
	return s
}

// AttachEngine wires a scripting engine into the keystroke path. The
// session is a valid engine.Host, so the usual sequence is to create
// the session, build the engine around it, then attach. Must be
// called before Run.
func (s *Session) AttachEngine(eng *engine.Engine) {
	s.eng = eng
}

// Run drives the session until the peer disconnects, the handler
// quits it, or the idle timer fires. It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	// Control events (timeouts, quit requests) can originate outside
	// the session goroutine; they funnel through an unbounded buffer
	// and act by closing the connection, which unblocks the pump.
	eventsIn, eventsOut := buffer.Pipe[event.Event](1000)
	s.eventsIn = eventsIn
	defer close(eventsIn)

	go func() {
		for ev := range eventsOut {
			if ev.Type == event.Control {
				switch ev.Control.Action {
				case event.ActionQuit, event.ActionTimeout:
					s.conn.Close()
				}
			}
		}
	}()

	if s.idleTimeout > 0 {
		// Wake-ups land on the same bus; CancelAll (deferred, so it
		// runs before eventsIn closes) guarantees none arrive late.
		s.timers = timer.NewService(eventsIn)
		defer s.timers.CancelAll()
		s.idleTimer = s.timers.After(s.idleTimeout, timeoutEvent())
	}

	if err := s.conn.Open(); err != nil {
		return err
	}
	if s.eng != nil {
		s.eng.CallHook("connect")
	}

	if s.login != nil {
		if err := s.login(s); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}

	s.conn.WriteString(s.prompt)
	s.ed.Reset(true)

	var pumpErr error
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var k keystroke.Keystroke
		for s.conn.Next(&k) {
			s.touchIdle()
			if done := s.applyKey(&k); done {
				return nil
			}
		}
		if s.quitting {
			return nil
		}
		if pumpErr != nil {
			if s.eng != nil {
				s.eng.CallHook("disconnect")
			}
			if pumpErr == io.EOF {
				return nil
			}
			return pumpErr
		}

		pumpErr = s.conn.Pump(nil)
	}
}

// applyKey routes one keystroke through scripting and the editor.
// It returns true when the session should end.
func (s *Session) applyKey(k *keystroke.Keystroke) bool {
	s.keysApplied++

	if s.eng != nil && s.eng.HandleKey(k) {
		return s.quitting
	}

	r := s.ed.Apply(k)
	if len(r.Echo) > 0 {
		s.conn.Write(r.Echo)
	}

	switch {
	case r.EOF:
		s.conn.WriteString("\n")
		return true

	case r.Done:
		s.linesRead++
		line := r.Line
		if s.eng != nil {
			var keep bool
			line, keep = s.eng.OnLine(line)
			if !keep {
				line = ""
			}
		}
		if line != "" {
			s.handler.HandleLine(s, line)
		}
		if s.quitting {
			return true
		}
		s.conn.WriteString(s.prompt)
		s.ed.Reset(true)
	}
	return false
}

// touchIdle pushes the idle deadline back.
func (s *Session) touchIdle() {
	if s.timers == nil {
		return
	}
	s.timers.Cancel(s.idleTimer)
	s.idleTimer = s.timers.After(s.idleTimeout, timeoutEvent())
}

func timeoutEvent() event.Event {
	return event.Event{
		Type:    event.Control,
		Control: event.ControlOp{Action: event.ActionTimeout},
	}
}

// Quit ends the session after the current keystroke is processed.
func (s *Session) Quit() {
	s.quitting = true
	if s.eventsIn != nil {
		s.eventsIn <- event.Event{
			Type:    event.Control,
			Control: event.ControlOp{Action: event.ActionQuit},
		}
	}
}

// Conn returns the underlying connection.
func (s *Session) Conn() *network.Conn {
	return s.conn
}

// WriteString sends text to the terminal, translating newlines.
func (s *Session) WriteString(text string) error {
	return s.conn.WriteString(text)
}

// Printf formats and sends text to the terminal.
func (s *Session) Printf(format string, args ...any) error {
	return s.conn.WriteString(fmt.Sprintf(format, args...))
}

// Stats returns current session counters.
func (s *Session) Stats() Stats {
	st := Stats{
		KeysApplied: s.keysApplied,
		LinesRead:   s.linesRead,
		Started:     s.started,
	}
	if s.timers != nil {
		st.Timers = s.timers.Active()
	}
	return st
}

// --- engine.Host ---

// Print implements engine.Host for scripting output.
func (s *Session) Print(text string) {
	s.conn.WriteString(text)
}

// RequestQuit implements engine.Host.
func (s *Session) RequestQuit() {
	s.Quit()
}
