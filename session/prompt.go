package session

import (
	"io"

	"github.com/drake/vty/keystroke"
)

// Prompt asks for one line of input, with echo, and blocks until the
// peer submits it. Meant to be called from inside a Handler.
func (s *Session) Prompt(text string) (string, error) {
	return s.promptLine(text, true)
}

// PromptPassword asks for one line with echo suppressed. The entered
// line stays out of the session history.
func (s *Session) PromptPassword(text string) (string, error) {
	return s.promptLine(text, false)
}

func (s *Session) promptLine(text string, echo bool) (string, error) {
	if err := s.conn.WriteString(text); err != nil {
		return "", err
	}
	s.ed.Reset(echo)
	defer s.ed.Reset(true)

	var pumpErr error
	for {
		var k keystroke.Keystroke
		for s.conn.Next(&k) {
			s.touchIdle()
			r := s.ed.Apply(&k)
			if len(r.Echo) > 0 {
				s.conn.Write(r.Echo)
			}
			if r.Done {
				return r.Line, nil
			}
			if r.EOF {
				return "", io.EOF
			}
		}
		if pumpErr != nil {
			return "", pumpErr
		}
		pumpErr = s.conn.Pump(nil)
	}
}

// PromptKey asks for a single keystroke (pagers, are-you-sure). Any
// keystroke already typed ahead is used first; otherwise the next
// complete, well-formed keystroke is stolen from the stream as it
// arrives, so it never touches the FIFO.
func (s *Session) PromptKey(text string) (keystroke.Keystroke, error) {
	var k keystroke.Keystroke
	if err := s.conn.WriteString(text); err != nil {
		return k, err
	}

	if s.conn.Next(&k) {
		s.touchIdle()
		return k, nil
	}

	for {
		var steal keystroke.Keystroke
		err := s.conn.Pump(&steal)

		if steal.Type != keystroke.Null {
			s.touchIdle()
			return steal, nil
		}
		// The chunk may have completed keystrokes the steal could not
		// take (telnet commands, broken sequences, or a keystroke that
		// finished before stealing armed).
		if s.conn.Next(&k) {
			s.touchIdle()
			return k, nil
		}
		if err != nil {
			return k, err
		}
		if steal.Value == keystroke.NullEOF {
			return k, io.EOF
		}
	}
}
