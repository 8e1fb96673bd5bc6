package keystroke

import (
	"math/rand"
	"reflect"
	"testing"
)

// interesting biases random inputs toward the bytes the state machine
// actually dispatches on.
var interesting = []byte{
	0x00, 0x07, 0x1B, '[', 0x20, 0x3F, 0x40, 0x7E, 0x7F, 0x9B,
	0xF0, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF, 'A', 'z', '3',
}

func randomInput(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		if rng.Intn(2) == 0 {
			b[i] = interesting[rng.Intn(len(interesting))]
		} else {
			b[i] = byte(rng.Intn(256))
		}
	}
	return b
}

// parseChunked feeds in split at the given boundaries, then EOF.
func parseChunked(in []byte, cuts []int) []Keystroke {
	s := New(0)
	prev := 0
	for _, c := range cuts {
		s.Input(in[prev:c], nil)
		prev = c
	}
	s.Input(in[prev:], nil)
	s.Input(nil, nil)
	return drain(s)
}

// Chunk invariance: the event sequence must not depend on where the
// input is split.
func TestChunkInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 300; trial++ {
		in := randomInput(rng, rng.Intn(40))
		whole := parseChunked(in, nil)

		// Every single split point.
		for c := 1; c < len(in); c++ {
			got := parseChunked(in, []int{c})
			if !reflect.DeepEqual(got, whole) {
				t.Fatalf("trial %d: split at %d of % x:\ngot  %+v\nwant %+v",
					trial, c, in, got, whole)
			}
		}

		// One byte at a time.
		cuts := make([]int, 0, len(in))
		for c := 1; c < len(in); c++ {
			cuts = append(cuts, c)
		}
		if got := parseChunked(in, cuts); !reflect.DeepEqual(got, whole) {
			t.Fatalf("trial %d: byte-at-a-time of % x:\ngot  %+v\nwant %+v",
				trial, in, got, whole)
		}
	}
}

// genWithCommands builds an input with well-formed telnet commands
// sprinkled between (and therefore inside) keystroke sequences, along
// with the same input with every command excised. Data bytes avoid
// 0xFF so the excised stream contains no IAC markers of its own.
func genWithCommands(rng *rand.Rand) (in, excised []byte) {
	for n := rng.Intn(40); n > 0; n-- {
		switch rng.Intn(8) {
		case 0: // IAC X, two-byte command
			in = append(in, 0xFF, byte(rng.Intn(240)))
		case 1: // IAC WILL/WONT/DO/DONT <option>
			in = append(in, 0xFF, byte(251+rng.Intn(4)), byte(rng.Intn(256)))
		case 2: // IAC SB <option> ... IAC SE, payload IAC-escaped
			in = append(in, 0xFF, 0xFA, byte(rng.Intn(256)))
			for k := rng.Intn(4); k > 0; k-- {
				d := byte(rng.Intn(256))
				if d == 0xFF {
					in = append(in, 0xFF, 0xFF)
				} else {
					in = append(in, d)
				}
			}
			in = append(in, 0xFF, 0xF0)
		default:
			var d byte
			if rng.Intn(2) == 0 {
				d = interesting[rng.Intn(len(interesting)-4)] // avoid the IAC byte
			} else {
				d = byte(rng.Intn(255))
			}
			in = append(in, d)
			excised = append(excised, d)
		}
	}
	return in, excised
}

func withoutIAC(ks []Keystroke) []Keystroke {
	var out []Keystroke
	for _, k := range ks {
		if k.Type != IAC {
			out = append(out, k)
		}
	}
	return out
}

// Telnet transparency: commands are invisible to the surrounding
// keystrokes.
func TestIACTransparency(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 500; trial++ {
		in, excised := genWithCommands(rng)

		got := withoutIAC(parse(in))
		want := parse(excised)
		if len(want) == 0 {
			want = nil
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d:\ninput   % x\nexcised % x\ngot  %+v\nwant %+v",
				trial, in, excised, got, want)
		}
	}
}

// Simple characters round-trip one to one.
func TestSimpleCharRoundTrip(t *testing.T) {
	var in []byte
	for b := 0; b < 0x80; b++ {
		if b == 0x1B {
			continue
		}
		in = append(in, byte(b))
	}

	got := parse(in)
	if len(got) != len(in) {
		t.Fatalf("got %d keystrokes for %d bytes", len(got), len(in))
	}
	for i, k := range got {
		if k.Type != Char || k.Flags != 0 || k.Len != 1 {
			t.Fatalf("byte %#x: %+v", in[i], k)
		}
		if k.Value != uint32(in[i]) || k.Buf[0] != in[i] {
			t.Fatalf("byte %#x: value %#x buf %#x", in[i], k.Value, k.Buf[0])
		}
	}
}

// Oversized sequences stay bounded and do not disturb what follows.
func TestBoundedAccumulation(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = '0' + byte(i%10)
	}

	in := append([]byte{0x1B, 0x5B}, long...)
	in = append(in, 0x7E, 'Q')
	got := parse(in)

	checkKeystrokes(t, got, []expect{
		{CSI, 0x7E, Truncated, []byte("0123456")},
		{Char, 'Q', 0, []byte{'Q'}},
	})

	in = append([]byte{0xFF, 0xFA, 0xC9}, long...)
	in = append(in, 0xFF, 0xF0, 'Q')
	got = parse(in)

	checkKeystrokes(t, got, []expect{
		{IAC, 0xFA, Truncated, []byte{0xFA, 0xC9, '0', '1', '2', '3', '4', '5'}},
		{Char, 'Q', 0, []byte{'Q'}},
	})
}

// Record integrity: whatever goes in, every buffered record decodes
// with a real type and a bounded payload. Decoding panics on a
// malformed record, so surviving the drain is most of the assertion.
func TestRecordIntegrity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 500; trial++ {
		in := randomInput(rng, rng.Intn(60))
		s := New(0)

		// Split ingest and fetch at a random point to exercise
		// partially drained FIFOs.
		cut := 0
		if len(in) > 0 {
			cut = rng.Intn(len(in))
		}
		s.Input(in[:cut], nil)
		head := drain(s)
		s.Input(in[cut:], nil)
		s.Input(nil, nil)

		for _, k := range append(head, drain(s)...) {
			if k.Type == Null || k.Type > IAC {
				t.Fatalf("trial %d: bad type in %+v", trial, k)
			}
			if k.Len < 0 || k.Len > MaxLen {
				t.Fatalf("trial %d: bad len in %+v", trial, k)
			}
		}
	}
}

// EOF is final: after the stream drains, only null/eof comes back.
func TestEOFMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	for trial := 0; trial < 200; trial++ {
		s := New(0)
		s.Input(randomInput(rng, rng.Intn(40)), nil)
		s.Input(nil, nil)
		drain(s)

		for i := 0; i < 3; i++ {
			var k Keystroke
			if s.Get(&k) {
				t.Fatalf("trial %d: Get after EOF returned %+v", trial, k)
			}
			if k.Type != Null || k.Value != NullEOF {
				t.Fatalf("trial %d: got %+v, want null/eof", trial, k)
			}
			s.Input([]byte{0x41}, nil) // ignored
		}
		if !s.EOF() {
			t.Fatalf("trial %d: EOF() false after drain", trial)
		}
	}
}

// stealMatches reports whether the stolen keystroke corresponds to a
// fetched one, accounting for the ESC representation that stolen
// control sequences use.
func stealMatches(stolen, fetched *Keystroke) bool {
	if fetched.Type == CSI {
		return stolen.Type == ESC &&
			stolen.Value == fetched.Value &&
			stolen.Len == fetched.Len &&
			string(stolen.Buf[:stolen.Len]) == string(fetched.Buf[:fetched.Len])
	}
	return *stolen == *fetched
}

// Steal correctness: only well-formed char/esc/csi keystrokes are
// diverted, and the remaining event order is undisturbed.
func TestStealProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	for trial := 0; trial < 500; trial++ {
		in := randomInput(rng, rng.Intn(40))
		plain := parse(in)

		s := New(0)
		var stolen Keystroke
		s.Input(in, &stolen)
		s.Input(nil, nil)
		rest := drain(s)

		// The event that should have been stolen is the first
		// well-formed non-IAC keystroke.
		idx := -1
		for i := range plain {
			k := &plain[i]
			if k.Type != IAC && k.Flags == 0 {
				idx = i
				break
			}
		}

		if idx == -1 {
			if stolen.Type != Null {
				t.Fatalf("trial %d: stole %+v with nothing stealable", trial, stolen)
			}
			if !reflect.DeepEqual(rest, plain) {
				t.Fatalf("trial %d: events disturbed without a steal", trial)
			}
			continue
		}

		if stolen.Flags != 0 {
			t.Fatalf("trial %d: stole flagged keystroke %+v", trial, stolen)
		}
		if stolen.Type != Char && stolen.Type != ESC {
			t.Fatalf("trial %d: stole type %v", trial, stolen.Type)
		}
		if !stealMatches(&stolen, &plain[idx]) {
			t.Fatalf("trial %d: stolen %+v does not match %+v", trial, stolen, plain[idx])
		}

		want := append(append([]Keystroke{}, plain[:idx]...), plain[idx+1:]...)
		if len(want) == 0 {
			want = nil
		}
		if !reflect.DeepEqual(rest, want) {
			t.Fatalf("trial %d: after steal\ngot  %+v\nwant %+v", trial, rest, want)
		}
	}
}
