package network

import "github.com/drake/vty/keystroke"

// Negotiator tracks telnet option state for one connection and
// produces the reply bytes each delimited IAC command calls for. The
// keystroke stream hands over commands whole; the Negotiator never
// sees partial sequences.
//
// It plays the server role: it offers to echo and suppress go-ahead,
// and asks the peer for window size and terminal type.
type Negotiator struct {
	// Options we are prepared to enable on our side (peer sends DO),
	// and options we want the peer to enable (peer sends WILL).
	local  map[byte]bool
	remote map[byte]bool

	localState  map[byte]bool
	remoteState map[byte]bool

	cols, rows uint16
	haveNAWS   bool
	termType   string

	// Commands that arrived broken or truncated; counted and dropped.
	BrokenSeen uint64
}

// NewNegotiator creates a server-side negotiator with the usual VTY
// option set.
func NewNegotiator() *Negotiator {
	return &Negotiator{
		local:       map[byte]bool{OptEcho: true, OptSuppressGoAhead: true},
		remote:      map[byte]bool{OptNAWS: true, OptTerminalType: true},
		localState:  make(map[byte]bool),
		remoteState: make(map[byte]bool),
	}
}

// Open returns the initial solicitation sent when a session starts:
// we will echo and suppress go-ahead, and we want the window size and
// terminal type.
func (n *Negotiator) Open() []byte {
	return []byte{
		IAC, WILL, OptEcho,
		IAC, WILL, OptSuppressGoAhead,
		IAC, DONT, OptLinemode,
		IAC, DO, OptNAWS,
		IAC, DO, OptTerminalType,
	}
}

// HandleIAC consumes one IAC keystroke and returns any bytes to send
// back. Broken or truncated commands are counted and ignored.
func (n *Negotiator) HandleIAC(k *keystroke.Keystroke) []byte {
	if k.Type != keystroke.IAC {
		return nil
	}
	if k.Flags != 0 || k.Len == 0 {
		n.BrokenSeen++
		return nil
	}

	cmd := k.Buf[0]
	switch cmd {
	case WILL, WONT, DO, DONT:
		if k.Len < 2 {
			n.BrokenSeen++
			return nil
		}
		return n.negotiate(cmd, k.Buf[1])

	case SB:
		if k.Len < 2 {
			n.BrokenSeen++
			return nil
		}
		n.subnegotiation(k.Buf[1], k.Bytes()[2:])
		return nil
	}

	// Two-byte commands (NOP, GA, AYT, ...) need no answer here.
	return nil
}

// negotiate applies one WILL/WONT/DO/DONT and returns the reply, if
// one is due. Replies are suppressed when the option is already in
// the requested state, which is what stops negotiation loops.
func (n *Negotiator) negotiate(cmd, opt byte) []byte {
	switch cmd {
	case WILL:
		if !n.remote[opt] {
			return []byte{IAC, DONT, opt}
		}
		if n.remoteState[opt] {
			return nil
		}
		n.remoteState[opt] = true
		reply := []byte{IAC, DO, opt}
		if opt == OptTerminalType {
			// Ask for the name straight away.
			reply = append(reply, IAC, SB, OptTerminalType, termTypeSend, IAC, SE)
		}
		return reply

	case WONT:
		if !n.remoteState[opt] {
			return nil
		}
		n.remoteState[opt] = false
		return []byte{IAC, DONT, opt}

	case DO:
		if !n.local[opt] {
			return []byte{IAC, WONT, opt}
		}
		if n.localState[opt] {
			return nil
		}
		n.localState[opt] = true
		return []byte{IAC, WILL, opt}

	case DONT:
		if !n.localState[opt] {
			return nil
		}
		n.localState[opt] = false
		return []byte{IAC, WONT, opt}
	}
	return nil
}

// subnegotiation decodes the payloads we understand. The keystroke
// stream has already reduced IAC IAC pairs and stripped IAC SE.
func (n *Negotiator) subnegotiation(opt byte, data []byte) {
	switch opt {
	case OptNAWS:
		if len(data) < 4 {
			n.BrokenSeen++
			return
		}
		n.cols = uint16(data[0])<<8 | uint16(data[1])
		n.rows = uint16(data[2])<<8 | uint16(data[3])
		n.haveNAWS = true

	case OptTerminalType:
		if len(data) < 1 || data[0] != termTypeIs {
			return
		}
		n.termType = string(data[1:])
	}
}

// WindowSize returns the most recent NAWS report, if any arrived.
func (n *Negotiator) WindowSize() (cols, rows uint16, ok bool) {
	return n.cols, n.rows, n.haveNAWS
}

// TerminalType returns the peer's reported terminal name, or "".
func (n *Negotiator) TerminalType() string {
	return n.termType
}

// EchoEnabled reports whether the peer accepted our echo offer.
func (n *Negotiator) EchoEnabled() bool {
	return n.localState[OptEcho]
}
