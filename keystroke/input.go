package keystroke

// The telnet bytes the parser itself must know. It delimits commands;
// it does not answer them.
const (
	tnIAC byte = 255 // Interpret As Command
	tnSB  byte = 250 // Subnegotiation Begin
	tnSE  byte = 240 // Subnegotiation End
)

// Input feeds a chunk of raw bytes into the stream. Passing data == nil
// signals EOF. All bytes are consumed; completed keystrokes land in the
// internal FIFO and partial sequences persist across calls.
//
// To steal the next keystroke, pass steal non-nil. Any partial
// keystroke is completed (into the FIFO) first, and only a well-formed
// Char, ESC or CSI keystroke is handed over; IAC commands and broken or
// truncated sequences are never stolen. The wish to steal is remembered
// across calls, so the caller may need several calls before one
// succeeds. If no keystroke was stolen by the time the chunk is
// consumed, steal is set to a Null keystroke (NullEOF once the stream
// is at EOF).
//
// Once EOF has been signalled, further input bytes are ignored.
func (s *Stream) Input(data []byte, steal *Keystroke) {
	// EOF converts anything partial into a broken keystroke at the end
	// of the stream. This happens before stealing is considered, so a
	// broken keystroke can never be stolen.
	if data == nil {
		s.eofMet = true
		s.stealThis = false

		if s.iac && s.in.state == stIdle {
			s.putIAC(0, 0)
		}

		// A partial IAC command may itself have interrupted a partial
		// escape, hence the loop: closing the IAC pops the interrupted
		// sequence, which is then closed in turn.
		for s.in.state != stIdle {
			switch s.in.state {
			case stESC:
				s.putESC(0, 0)
				s.in.state = stIdle

			case stCSI:
				// Plant a '\0' terminator so the parameters fetch
				// null-terminated, as they do for a malformed byte.
				l := s.in.len
				s.in.len++
				if l >= MaxLen {
					l = MaxLen - 1
				}
				s.in.raw[l] = 0
				s.putCSI(0)
				s.in.state = stIdle

			case stIACOption, stIACSub:
				s.putIACLong(true) // pops s.pushed

			case stChar:
				panic("keystroke: impossible stream state")

			default:
				panic("keystroke: unknown stream state")
			}
		}
	}

	// Latch the stealing state. Stealing arms only when the stream is
	// between keystrokes; a sequence already in flight must finish into
	// the FIFO first.
	if steal == nil {
		s.stealThis = false
	} else {
		s.stealThis = s.in.state == stIdle
	}

	// After EOF no further bytes are accepted, but the stealing state
	// above is still serviced.
	if s.eofMet {
		data = data[:0]
	}

	for i := 0; i < len(data); i++ {
		u := data[i]

		// IAC handling takes precedence over everything except the
		// <option> byte, which may legitimately be 0xFF (EXOPL).
		if u == tnIAC && s.in.state != stIACOption {
			if s.iac {
				s.iac = false // IAC IAC is the literal byte 0xFF
			} else {
				s.iac = true
				continue
			}
		}

		// An IAC is pending and u is its argument. Telnet commands are
		// invisible to the surrounding keystroke: anything longer than
		// IAC X displaces the current sequence, which resumes after.
		if s.iac {
			s.iac = false

			switch s.in.state {
			case stIdle, stESC, stCSI:
				if u < tnSB {
					s.putIAC(u, 1)
				} else {
					s.pushed = s.in
					s.in.state = stIACOption
					s.in.len = 1
					s.in.raw[0] = u
				}

			case stIACSub:
				if s.in.raw[0] != tnSB {
					panic("keystroke: subnegotiation without SB")
				}
				broken := u != tnSE
				if broken {
					// IAC X inside a subnegotiation, X not SE: end the
					// command broken and reprocess IAC X from scratch.
					i--
					s.iac = true
				}
				s.putIACLong(broken) // pops s.pushed

			case stChar, stIACOption:
				panic("keystroke: impossible stream state")

			default:
				panic("keystroke: unknown stream state")
			}

			continue
		}

		switch s.in.state {
		case stIdle:
			s.stealThis = steal != nil

			switch {
			case u == 0x1B:
				s.in.state = stESC

			case u == s.csi: // csi == 0x1B means no distinct CSI byte
				s.in.len = 0
				s.in.state = stCSI

			default:
				if s.stealThis {
					stealChar(steal, u)
					s.stealThis = false
					steal = nil
				} else {
					s.putChar(uint32(u))
				}
			}

		case stChar:
			panic("keystroke: impossible stream state")

		case stESC:
			if u == '[' {
				s.in.len = 0
				s.in.state = stCSI
			} else {
				if s.stealThis {
					stealESC(steal, u)
					s.stealThis = false
					steal = nil
				} else {
					s.putESC(u, 1)
				}
				s.in.state = stIdle
			}

		case stCSI:
			if u >= 0x20 && u <= 0x3F {
				// Parameter or intermediate byte.
				s.addRaw(u)
				break
			}

			ok := true
			if u < 0x40 || u > 0x7F {
				// Not a terminator either: the sequence is malformed
				// and the byte is not part of it. Put it back; if it
				// is an IAC, re-arm the escape.
				i--
				s.iac = u == tnIAC
				u = 0
				ok = false
			}

			// Plant the terminator, overwriting the last buffered byte
			// if the sequence outgrew the buffer.
			l := s.in.len
			s.in.len++
			if l >= MaxLen {
				l = MaxLen - 1
				ok = false
			}
			s.in.raw[l] = u

			if s.stealThis && ok {
				s.stealCSI(steal, u)
				s.stealThis = false
				steal = nil
			} else {
				s.putCSI(u)
			}
			s.in.state = stIdle

		case stIACOption:
			// The option byte, 0x00..0xFF with no IAC escaping.
			if s.in.len != 1 {
				panic("keystroke: option state without command byte")
			}
			s.addRaw(u)

			if s.in.raw[0] == tnSB {
				s.in.state = stIACSub
			} else {
				s.putIACLong(false) // pops s.pushed
			}

		case stIACSub:
			if s.in.raw[0] != tnSB {
				panic("keystroke: subnegotiation without SB")
			}
			s.addRaw(u)

		default:
			panic("keystroke: unknown stream state")
		}
	}

	if steal != nil {
		s.setNull(steal)
	}
}

// addRaw accumulates a sequence byte. len always advances; the write
// is dropped once the buffer is full and the overflow is noticed when
// the sequence is emitted.
func (s *Stream) addRaw(u byte) {
	if s.in.len < MaxLen {
		s.in.raw[s.in.len] = u
	}
	s.in.len++
}

// put writes one encoded record: header, length, payload. n is the
// accumulated sequence length, which may exceed MaxLen; the record is
// clamped and flagged truncated in that case.
func (s *Stream) put(t Type, broken bool, p []byte, n int) {
	head := byte(fifoCompound) | byte(t)
	if broken {
		head |= fifoBroken
	}
	if n > MaxLen {
		n = MaxLen
		head |= fifoTrunc
	}

	s.fifo.PutByte(head)
	s.fifo.PutByte(byte(n))
	if n > 0 {
		s.fifo.Put(p[:n])
	}
}

// putChar stores a character value. Values below 0x80 take the simple
// single-byte form; anything larger is stored big-endian with leading
// zero bytes stripped.
func (s *Stream) putChar(u uint32) {
	if u < 0x80 {
		s.fifo.PutByte(byte(u))
		return
	}

	var buf [4]byte
	p := 4
	for {
		p--
		buf[p] = byte(u)
		u >>= 8
		if u == 0 {
			break
		}
	}
	s.put(Char, false, buf[p:], 4-p)
}

// putESC stores ESC X. Broken if there was no X (EOF after ESC).
func (s *Stream) putESC(u byte, n int) {
	s.put(ESC, n == 0, []byte{u}, n)
}

// putCSI stores the accumulated sequence, whose last byte is the
// terminator u already planted by the caller. Broken if u is 0.
func (s *Stream) putCSI(u byte) {
	s.put(CSI, u == 0, s.in.raw[:], s.in.len)
}

// putIAC stores a two-byte telnet command IAC X. Broken if there was
// no X (EOF after IAC).
func (s *Stream) putIAC(u byte, n int) {
	s.put(IAC, n == 0, []byte{u}, n)
}

// putIACLong stores an accumulated telnet command and pops the
// sequence it interrupted.
func (s *Stream) putIACLong(broken bool) {
	s.put(IAC, broken, s.in.raw[:], s.in.len)

	s.in = s.pushed
	s.pushed.state = stIdle
}

// stealChar hands a plain character straight to the caller.
func stealChar(k *Keystroke, u byte) {
	k.Type = Char
	k.Value = uint32(u)
	k.Flags = 0
	k.Len = 1
	k.Buf[0] = u
}

// stealESC hands ESC X straight to the caller.
func stealESC(k *Keystroke, u byte) {
	k.Type = ESC
	k.Value = uint32(u)
	k.Flags = 0
	k.Len = 1
	k.Buf[0] = u
}

// stealCSI hands a completed CSI sequence straight to the caller. In
// the raw buffer the terminator follows the parameters; the stolen
// keystroke carries the terminator as its value and the parameters,
// null-terminated, in Buf. Broken and truncated sequences are never
// stolen, so the whole sequence is known to fit.
//
// The stolen keystroke reports Type ESC, not CSI, which callers of the
// original implementation have come to rely on.
func (s *Stream) stealCSI(k *Keystroke, u byte) {
	n := s.in.len // includes the terminator
	if n > MaxLen {
		panic("keystroke: stealing truncated sequence")
	}

	k.Type = ESC
	k.Value = uint32(u)
	k.Flags = 0
	k.Len = n - 1

	copy(k.Buf[:], s.in.raw[:n-1])
	k.Buf[n-1] = 0
}
