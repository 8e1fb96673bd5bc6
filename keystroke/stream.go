package keystroke

import "github.com/drake/vty/internal/fifo"

// streamState says what the parser is in the middle of collecting.
type streamState uint8

const (
	stIdle      streamState = iota // between keystrokes (but see iac flag)
	stChar                         // reserved: multi-byte character collection
	stESC                          // seen ESC, expecting one byte
	stCSI                          // inside ESC [ or CSI sequence
	stIACOption                    // seen IAC X (X >= SB), expecting option
	stIACSub                       // inside IAC SB subnegotiation
)

// progress is a partially collected sequence. Len counts every byte
// seen and may exceed MaxLen; writes into raw stay bounded and the
// overflow is detected at emission time.
type progress struct {
	state streamState
	len   int
	raw   [MaxLen]byte
}

// Stream is an incremental keystroke parser. Feed it byte chunks with
// Input and drain decoded events with Get.
//
// A Stream has a single owner: Input and Get must not run concurrently.
// Every call completes synchronously.
type Stream struct {
	fifo *fifo.Buffer

	csi byte // CSI character value; 0x1B means no distinct CSI byte

	eofMet    bool // nothing more to come
	stealThis bool // divert the next completed keystroke
	iac       bool // last byte consumed was an unescaped IAC

	in     progress // sequence being collected
	pushed progress // sequence interrupted by an IAC command
}

// fifoInitial is the initial FIFO allocation; plenty for a terminal
// session's typing bursts.
const fifoInitial = 2000

// New creates a Stream. csiChar is the single-byte CSI value, usually
// 0x9B; passing 0 disables it (as does passing 0x1B, since ESC is
// recognized first).
func New(csiChar byte) *Stream {
	s := &Stream{fifo: fifo.New(fifoInitial)}
	if csiChar == 0 {
		csiChar = 0x1B
	}
	s.csi = csiChar
	return s
}

// Empty reports whether no complete keystrokes are buffered. A partial
// sequence still being collected does not count.
func (s *Stream) Empty() bool {
	return s.fifo.Empty()
}

// EOF reports whether the stream is fully done: EOF has been signalled
// and every buffered keystroke has been fetched. When EOF is signalled
// any partial sequence is flushed as a broken keystroke, so eofMet
// implies there is nothing in progress.
func (s *Stream) EOF() bool {
	return s.fifo.Empty() && s.eofMet
}

// SetEOF forces the stream to EOF, discarding buffered keystrokes and
// any partial sequence. Unlike signalling EOF through Input, nothing
// is flushed into the FIFO.
func (s *Stream) SetEOF() {
	s.fifo.Reset()

	s.eofMet = true

	s.stealThis = false
	s.iac = false
	s.in.state = stIdle
	s.pushed.state = stIdle
}

// Get fetches the next keystroke into k. It returns false and sets k
// to a Null keystroke when nothing is buffered; the Null value is
// NullEOF once the stream is at EOF.
func (s *Stream) Get(k *Keystroke) bool {
	b, ok := s.fifo.GetByte()
	if !ok {
		return s.setNull(k)
	}

	// Simple character: the byte is the whole record.
	if b&fifoCompound == 0 {
		k.Type = Char
		k.Value = uint32(b)
		k.Flags = 0
		k.Len = 1
		k.Buf[0] = b
		return true
	}

	k.Type = Type(b & fifoTypeMask)
	k.Value = 0
	k.Flags = Flags(b) & (Broken | Truncated)
	k.Len = int(s.mustByte())

	for i := 0; i < k.Len; i++ {
		k.Buf[i] = s.mustByte()
	}

	switch k.Type {
	case Null:
		panic("keystroke: null record in FIFO")

	case Char:
		// Well-formed characters reassemble big-endian; broken or
		// truncated ones keep only the raw bytes.
		if k.Flags == 0 {
			if k.Len < 1 || k.Len > 4 {
				panic("keystroke: bad char record length")
			}
			for i := 0; i < k.Len; i++ {
				k.Value = k.Value<<8 + uint32(k.Buf[i])
			}
		}

	case ESC:
		if k.Len == 1 {
			k.Value = uint32(k.Buf[0])
		} else if k.Len != 0 {
			panic("keystroke: bad esc record length")
		}

	case CSI:
		// The last payload byte is the terminator. Move it to Value
		// and null-terminate the parameters.
		if k.Len != 0 {
			k.Len--
			k.Value = uint32(k.Buf[k.Len])
		}
		k.Buf[k.Len] = 0

	case IAC:
		if k.Len > 0 {
			k.Value = uint32(k.Buf[0])
		}

	default:
		panic("keystroke: unknown record type in FIFO")
	}

	return true
}

// setNull fills k with the Null keystroke and returns false.
func (s *Stream) setNull(k *Keystroke) bool {
	k.Type = Null
	if s.eofMet {
		k.Value = NullEOF
	} else {
		k.Value = NullNotEOF
	}
	k.Flags = 0
	k.Len = 0
	return false
}

// mustByte fetches a record continuation byte. Partial records are
// never written, so an empty FIFO here is a parser bug.
func (s *Stream) mustByte() byte {
	c, ok := s.fifo.GetByte()
	if !ok {
		panic("keystroke: truncated record in FIFO")
	}
	return c
}
