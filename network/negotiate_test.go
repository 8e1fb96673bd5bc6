package network

import (
	"bytes"
	"testing"

	"github.com/drake/vty/keystroke"
)

// iacEvent runs raw telnet bytes through a keystroke stream and
// returns the first delimited IAC keystroke.
func iacEvent(t *testing.T, raw []byte) *keystroke.Keystroke {
	t.Helper()
	s := keystroke.New(0x9B)
	s.Input(raw, nil)
	var k keystroke.Keystroke
	if !s.Get(&k) || k.Type != keystroke.IAC {
		t.Fatalf("no IAC keystroke from % x (got %+v)", raw, k)
	}
	return &k
}

func TestOpenSolicitation(t *testing.T) {
	n := NewNegotiator()
	want := []byte{
		IAC, WILL, OptEcho,
		IAC, WILL, OptSuppressGoAhead,
		IAC, DONT, OptLinemode,
		IAC, DO, OptNAWS,
		IAC, DO, OptTerminalType,
	}
	if got := n.Open(); !bytes.Equal(got, want) {
		t.Errorf("Open() = % x, want % x", got, want)
	}
}

func TestNegotiateWillSupported(t *testing.T) {
	n := NewNegotiator()

	reply := n.HandleIAC(iacEvent(t, []byte{IAC, WILL, OptNAWS}))
	if !bytes.Equal(reply, []byte{IAC, DO, OptNAWS}) {
		t.Errorf("reply = % x, want IAC DO NAWS", reply)
	}

	// Second WILL must not answer again.
	reply = n.HandleIAC(iacEvent(t, []byte{IAC, WILL, OptNAWS}))
	if reply != nil {
		t.Errorf("repeated WILL answered: % x", reply)
	}
}

func TestNegotiateWillUnsupported(t *testing.T) {
	n := NewNegotiator()
	reply := n.HandleIAC(iacEvent(t, []byte{IAC, WILL, OptEOR}))
	if !bytes.Equal(reply, []byte{IAC, DONT, OptEOR}) {
		t.Errorf("reply = % x, want IAC DONT EOR", reply)
	}
}

func TestNegotiateDo(t *testing.T) {
	n := NewNegotiator()

	reply := n.HandleIAC(iacEvent(t, []byte{IAC, DO, OptEcho}))
	if !bytes.Equal(reply, []byte{IAC, WILL, OptEcho}) {
		t.Errorf("reply = % x, want IAC WILL ECHO", reply)
	}
	if !n.EchoEnabled() {
		t.Error("echo not enabled after DO ECHO")
	}

	// Unsupported local option is refused.
	reply = n.HandleIAC(iacEvent(t, []byte{IAC, DO, 200}))
	if !bytes.Equal(reply, []byte{IAC, WONT, 200}) {
		t.Errorf("reply = % x, want IAC WONT 200", reply)
	}
}

func TestNegotiateWontDont(t *testing.T) {
	n := NewNegotiator()

	// Disable before enable: silence.
	if reply := n.HandleIAC(iacEvent(t, []byte{IAC, WONT, OptNAWS})); reply != nil {
		t.Errorf("WONT before WILL answered: % x", reply)
	}

	n.HandleIAC(iacEvent(t, []byte{IAC, WILL, OptNAWS}))
	reply := n.HandleIAC(iacEvent(t, []byte{IAC, WONT, OptNAWS}))
	if !bytes.Equal(reply, []byte{IAC, DONT, OptNAWS}) {
		t.Errorf("reply = % x, want IAC DONT NAWS", reply)
	}

	n.HandleIAC(iacEvent(t, []byte{IAC, DO, OptEcho}))
	reply = n.HandleIAC(iacEvent(t, []byte{IAC, DONT, OptEcho}))
	if !bytes.Equal(reply, []byte{IAC, WONT, OptEcho}) {
		t.Errorf("reply = % x, want IAC WONT ECHO", reply)
	}
	if n.EchoEnabled() {
		t.Error("echo still enabled after DONT")
	}
}

func TestNAWSDecode(t *testing.T) {
	n := NewNegotiator()
	n.HandleIAC(iacEvent(t, []byte{IAC, WILL, OptNAWS}))

	// 80 columns, 24 rows.
	ev := iacEvent(t, []byte{IAC, SB, OptNAWS, 0, 80, 0, 24, IAC, SE})
	if reply := n.HandleIAC(ev); reply != nil {
		t.Errorf("NAWS subnegotiation answered: % x", reply)
	}

	cols, rows, ok := n.WindowSize()
	if !ok || cols != 80 || rows != 24 {
		t.Errorf("WindowSize = %d x %d (ok=%v), want 80 x 24", cols, rows, ok)
	}
}

func TestNAWSWideWindow(t *testing.T) {
	n := NewNegotiator()

	// 300 columns: the width bytes carry a high byte. 300 = 0x012C.
	ev := iacEvent(t, []byte{IAC, SB, OptNAWS, 0x01, 0x2C, 0, 50, IAC, SE})
	n.HandleIAC(ev)

	cols, rows, ok := n.WindowSize()
	if !ok || cols != 300 || rows != 50 {
		t.Errorf("WindowSize = %d x %d (ok=%v), want 300 x 50", cols, rows, ok)
	}
}

func TestTerminalTypeFlow(t *testing.T) {
	n := NewNegotiator()

	// WILL TERMINAL-TYPE is answered with DO plus an immediate SEND.
	reply := n.HandleIAC(iacEvent(t, []byte{IAC, WILL, OptTerminalType}))
	want := []byte{
		IAC, DO, OptTerminalType,
		IAC, SB, OptTerminalType, termTypeSend, IAC, SE,
	}
	if !bytes.Equal(reply, want) {
		t.Errorf("reply = % x, want % x", reply, want)
	}

	// IS vt100
	raw := append([]byte{IAC, SB, OptTerminalType, termTypeIs}, []byte("vt100")...)
	raw = append(raw, IAC, SE)
	n.HandleIAC(iacEvent(t, raw))

	if got := n.TerminalType(); got != "vt100" {
		t.Errorf("TerminalType = %q, want vt100", got)
	}
}

func TestBrokenCommandCounted(t *testing.T) {
	n := NewNegotiator()

	// EOF right after IAC produces a broken, empty command.
	s := keystroke.New(0x9B)
	s.Input([]byte{IAC}, nil)
	s.Input(nil, nil)
	var k keystroke.Keystroke
	if !s.Get(&k) {
		t.Fatal("no keystroke")
	}

	if reply := n.HandleIAC(&k); reply != nil {
		t.Errorf("broken command answered: % x", reply)
	}
	if n.BrokenSeen != 1 {
		t.Errorf("BrokenSeen = %d, want 1", n.BrokenSeen)
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{IAC, SB, 201, IAC, 205, 202, IAC, SE},
		{IAC, IAC, 228},
		{228, IAC, IAC},
		{},
		{1, 2, 3},
	}
	for _, data := range cases {
		if got := UnescapeIAC(EscapeIAC(data)); !bytes.Equal(got, data) {
			t.Errorf("round trip of % x gave % x", data, got)
		}
	}
}
