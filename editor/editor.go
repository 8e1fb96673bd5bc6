// Package editor implements line editing over decoded keystrokes.
//
// It is a pure consumer: keystrokes go in, echo bytes for the remote
// terminal and completed lines come out. It holds no socket and does
// no I/O of its own.
package editor

import "github.com/drake/vty/keystroke"

// Result is what one keystroke did to the line.
type Result struct {
	Echo []byte // bytes to send back to the terminal
	Line string // completed line; valid when Done
	Done bool   // a line was submitted
	EOF  bool   // ^D on an empty line
}

// Editor is a single-line editor with cursor movement and history
// recall. One editor serves one terminal session.
type Editor struct {
	buf    []byte
	cursor int

	history *History
	histPos int    // index into history; len(history) = live line
	saved   []byte // live line stashed while browsing history

	echo bool
}

// New creates an editor backed by the given history.
func New(history *History) *Editor {
	if history == nil {
		history = NewHistory(100)
	}
	return &Editor{
		history: history,
		histPos: history.Len(),
		echo:    true,
	}
}

// Reset clears the line and sets the echo mode. Password prompts turn
// echo off; history recall is disabled while it is.
func (e *Editor) Reset(echo bool) {
	e.buf = e.buf[:0]
	e.cursor = 0
	e.histPos = e.history.Len()
	e.saved = nil
	e.echo = echo
}

// Line returns the current (incomplete) line contents.
func (e *Editor) Line() string {
	return string(e.buf)
}

// Apply consumes one keystroke. Broken or truncated keystrokes and
// telnet commands are ignored.
func (e *Editor) Apply(k *keystroke.Keystroke) Result {
	if k.Flags != 0 {
		return Result{}
	}

	switch k.Type {
	case keystroke.Char:
		return e.applyChar(k.Value)
	case keystroke.ESC:
		return e.applyESC(byte(k.Value))
	case keystroke.CSI:
		return e.applyCSI(byte(k.Value), k.Bytes())
	}
	return Result{}
}

func (e *Editor) applyChar(u uint32) Result {
	switch u {
	case 0x01: // ^A
		return e.home()
	case 0x02: // ^B
		return e.left()
	case 0x03: // ^C
		return e.killLine()
	case 0x04: // ^D
		if len(e.buf) == 0 {
			return Result{EOF: true}
		}
		return e.deleteAt()
	case 0x05: // ^E
		return e.end()
	case 0x06: // ^F
		return e.right()
	case 0x08, 0x7F: // ^H, DEL
		return e.backspace()
	case 0x0B: // ^K
		return e.killToEnd()
	case 0x0A, 0x0D: // LF, CR
		return e.submit()
	case 0x15: // ^U
		return e.killLine()
	case 0x17: // ^W
		return e.eraseWord()
	}

	if u < 0x20 || u > 0xFF {
		// Other control characters and wide values are dropped; the
		// stream is byte-transparent but the line is 8-bit.
		return Result{}
	}
	return e.insert(byte(u))
}

func (e *Editor) applyESC(x byte) Result {
	switch x {
	case 'b':
		return e.wordLeft()
	case 'f':
		return e.wordRight()
	}
	return Result{}
}

func (e *Editor) applyCSI(term byte, params []byte) Result {
	switch term {
	case 'A':
		return e.historyPrev()
	case 'B':
		return e.historyNext()
	case 'C':
		return e.right()
	case 'D':
		return e.left()
	case 'H':
		return e.home()
	case 'F':
		return e.end()
	case '~':
		switch string(params) {
		case "1":
			return e.home()
		case "3":
			return e.deleteAt()
		case "4":
			return e.end()
		}
	}
	return Result{}
}

// --- Editing primitives ---

func (e *Editor) insert(c byte) Result {
	e.buf = append(e.buf, 0)
	copy(e.buf[e.cursor+1:], e.buf[e.cursor:])
	e.buf[e.cursor] = c
	e.cursor++

	if !e.echo {
		return Result{}
	}
	if e.cursor == len(e.buf) {
		return Result{Echo: []byte{c}}
	}
	// Mid-line insert: repaint the tail and step back over it.
	out := append([]byte{}, e.buf[e.cursor-1:]...)
	return Result{Echo: append(out, backspaces(len(e.buf)-e.cursor)...)}
}

func (e *Editor) backspace() Result {
	if e.cursor == 0 {
		return Result{}
	}
	e.cursor--
	e.buf = append(e.buf[:e.cursor], e.buf[e.cursor+1:]...)

	if !e.echo {
		return Result{}
	}
	out := []byte{'\b'}
	out = append(out, e.buf[e.cursor:]...)
	out = append(out, ' ')
	return Result{Echo: append(out, backspaces(len(e.buf)-e.cursor+1)...)}
}

func (e *Editor) deleteAt() Result {
	if e.cursor >= len(e.buf) {
		return Result{}
	}
	e.buf = append(e.buf[:e.cursor], e.buf[e.cursor+1:]...)

	if !e.echo {
		return Result{}
	}
	out := append([]byte{}, e.buf[e.cursor:]...)
	out = append(out, ' ')
	return Result{Echo: append(out, backspaces(len(e.buf)-e.cursor+1)...)}
}

func (e *Editor) left() Result {
	if e.cursor == 0 {
		return Result{}
	}
	e.cursor--
	return e.echoed([]byte{'\b'})
}

func (e *Editor) right() Result {
	if e.cursor >= len(e.buf) {
		return Result{}
	}
	e.cursor++
	return e.echoed([]byte{e.buf[e.cursor-1]})
}

func (e *Editor) home() Result {
	n := e.cursor
	e.cursor = 0
	return e.echoed(backspaces(n))
}

func (e *Editor) end() Result {
	out := append([]byte{}, e.buf[e.cursor:]...)
	e.cursor = len(e.buf)
	return e.echoed(out)
}

func (e *Editor) killToEnd() Result {
	n := len(e.buf) - e.cursor
	e.buf = e.buf[:e.cursor]
	if n == 0 {
		return Result{}
	}
	out := append(spaces(n), backspaces(n)...)
	return e.echoed(out)
}

func (e *Editor) killLine() Result {
	out := e.wipeEcho()
	e.buf = e.buf[:0]
	e.cursor = 0
	return e.echoed(out)
}

func (e *Editor) eraseWord() Result {
	start := e.cursor
	for start > 0 && e.buf[start-1] == ' ' {
		start--
	}
	for start > 0 && e.buf[start-1] != ' ' {
		start--
	}
	if start == e.cursor {
		return Result{}
	}
	n := e.cursor - start
	e.buf = append(e.buf[:start], e.buf[e.cursor:]...)
	e.cursor = start

	if !e.echo {
		return Result{}
	}
	out := backspaces(n)
	out = append(out, e.buf[e.cursor:]...)
	out = append(out, spaces(n)...)
	out = append(out, backspaces(len(e.buf)-e.cursor+n)...)
	return Result{Echo: out}
}

func (e *Editor) wordLeft() Result {
	start := e.cursor
	for start > 0 && e.buf[start-1] == ' ' {
		start--
	}
	for start > 0 && e.buf[start-1] != ' ' {
		start--
	}
	n := e.cursor - start
	e.cursor = start
	return e.echoed(backspaces(n))
}

func (e *Editor) wordRight() Result {
	end := e.cursor
	for end < len(e.buf) && e.buf[end] == ' ' {
		end++
	}
	for end < len(e.buf) && e.buf[end] != ' ' {
		end++
	}
	out := append([]byte{}, e.buf[e.cursor:end]...)
	e.cursor = end
	return e.echoed(out)
}

func (e *Editor) submit() Result {
	line := string(e.buf)
	if e.echo {
		e.history.Add(line)
	}
	e.buf = e.buf[:0]
	e.cursor = 0
	e.histPos = e.history.Len()
	e.saved = nil
	return Result{Echo: []byte("\r\n"), Line: line, Done: true}
}

// --- History recall ---

func (e *Editor) historyPrev() Result {
	if !e.echo || e.histPos == 0 {
		return Result{}
	}
	if e.histPos == e.history.Len() {
		e.saved = append([]byte{}, e.buf...)
	}
	e.histPos--
	return e.replaceWith([]byte(e.history.At(e.histPos)))
}

func (e *Editor) historyNext() Result {
	if !e.echo || e.histPos >= e.history.Len() {
		return Result{}
	}
	e.histPos++
	if e.histPos == e.history.Len() {
		return e.replaceWith(e.saved)
	}
	return e.replaceWith([]byte(e.history.At(e.histPos)))
}

// replaceWith swaps the whole line, wiping the old one on screen.
func (e *Editor) replaceWith(line []byte) Result {
	out := e.wipeEcho()
	e.buf = append(e.buf[:0], line...)
	e.cursor = len(e.buf)
	out = append(out, e.buf...)
	return Result{Echo: out}
}

// wipeEcho returns the bytes that erase the current line from the
// terminal: back to column zero, blank it, back again.
func (e *Editor) wipeEcho() []byte {
	out := backspaces(e.cursor)
	out = append(out, spaces(len(e.buf))...)
	return append(out, backspaces(len(e.buf))...)
}

func (e *Editor) echoed(out []byte) Result {
	if !e.echo || len(out) == 0 {
		return Result{}
	}
	return Result{Echo: out}
}

func backspaces(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = '\b'
	}
	return out
}

func spaces(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	return out
}
