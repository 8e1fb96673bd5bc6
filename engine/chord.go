package engine

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/drake/vty/keystroke"
)

// chordCache names keystrokes for the binding table. Control-sequence
// names depend on their parameter bytes, which the peer controls, so
// the cache is bounded.
type chordCache struct {
	csi *lru.Cache[string, string]
}

func newChordCache() *chordCache {
	cache, _ := lru.New[string, string](256)
	return &chordCache{csi: cache}
}

// format renders a keystroke as a chord name. Broken and truncated
// keystrokes have no name.
//
//	char 'a'        -> "a"
//	char 0x01       -> "C-a"
//	esc 'f'         -> "M-f"
//	csi A/B/C/D     -> "up" / "down" / "right" / "left"
//	csi "3" '~'     -> "csi-3~"
func (c *chordCache) format(k *keystroke.Keystroke) (string, bool) {
	if k.Flags != 0 {
		return "", false
	}

	switch k.Type {
	case keystroke.Char:
		u := k.Value
		switch {
		case u < 0x20:
			return "C-" + string(rune('a'+u-1)), true
		case u == 0x7F:
			return "del", true
		case u < 0x80:
			return string(rune(u)), true
		}
		return fmt.Sprintf("0x%02x", u), true

	case keystroke.ESC:
		return "M-" + string(rune(k.Value)), true

	case keystroke.CSI:
		switch k.Value {
		case 'A':
			if k.Len == 0 {
				return "up", true
			}
		case 'B':
			if k.Len == 0 {
				return "down", true
			}
		case 'C':
			if k.Len == 0 {
				return "right", true
			}
		case 'D':
			if k.Len == 0 {
				return "left", true
			}
		}

		key := string(k.Bytes()) + string(rune(k.Value))
		if name, ok := c.csi.Get(key); ok {
			return name, true
		}
		name := "csi-" + key
		c.csi.Add(key, name)
		return name, true
	}

	return "", false
}
