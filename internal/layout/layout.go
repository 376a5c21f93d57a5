// Package layout implements the candidate assignment of an alphabet to
// physical keys that the annealer mutates.
package layout

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	// ErrAlphabetTooLarge is returned when there are fewer keys than characters.
	ErrAlphabetTooLarge = errors.New("layout: alphabet larger than key count")

	// ErrDuplicateChar is returned when an alphabet repeats a character.
	ErrDuplicateChar = errors.New("layout: duplicate character")

	// ErrNotBijective is returned when a layout fails its invariant check.
	ErrNotBijective = errors.New("layout: assignment is not a bijection")
)

// Free marks a key with no character assigned.
const Free = -1

// FreeRune is how free keys are rendered, unless the alphabet uses it.
const FreeRune = '_'

// freeFallbacks stand in for FreeRune when it is part of the alphabet.
var freeFallbacks = []rune{'·', '□', '∅'}

// Layout assigns each character of an alphabet to a distinct key. Keys may
// outnumber characters; the surplus keys are free. A Layout is not safe for
// concurrent mutation.
type Layout struct {
	alphabet []rune
	index    map[rune]int
	pos      []int
	keys     []int
}

func newEmpty(alphabet []rune, keyCount int) (*Layout, error) {
	if len(alphabet) > keyCount {
		return nil, fmt.Errorf("%w: %d characters, %d keys", ErrAlphabetTooLarge, len(alphabet), keyCount)
	}
	l := &Layout{
		alphabet: make([]rune, len(alphabet)),
		index:    make(map[rune]int, len(alphabet)),
		pos:      make([]int, len(alphabet)),
		keys:     make([]int, keyCount),
	}
	copy(l.alphabet, alphabet)
	for i, r := range alphabet {
		if _, dup := l.index[r]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateChar, r)
		}
		l.index[r] = i
	}
	for k := range l.keys {
		l.keys[k] = Free
	}
	return l, nil
}

// Random returns a uniformly random assignment of alphabet onto keyCount keys.
func Random(alphabet []rune, keyCount int, rng *rand.Rand) (*Layout, error) {
	l, err := newEmpty(alphabet, keyCount)
	if err != nil {
		return nil, err
	}
	perm := rng.Perm(keyCount)
	for i := range l.alphabet {
		l.pos[i] = perm[i]
		l.keys[perm[i]] = i
	}
	return l, nil
}

// Parse builds a layout from a string read in key order: the i-th rune goes
// on key i. Runes outside the alphabet (conventionally FreeRune) leave the
// key free, as do keys past the end of the string.
func Parse(alphabet []rune, keyCount int, s string) (*Layout, error) {
	l, err := newEmpty(alphabet, keyCount)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	if len(runes) > keyCount {
		return nil, fmt.Errorf("layout: %q has %d keys, geometry has %d", s, len(runes), keyCount)
	}
	for i := range l.pos {
		l.pos[i] = Free
	}
	for k, r := range runes {
		c, ok := l.index[r]
		if !ok {
			continue
		}
		if l.pos[c] != Free {
			return nil, fmt.Errorf("%w: %q appears twice in %q", ErrDuplicateChar, r, s)
		}
		l.pos[c] = k
		l.keys[k] = c
	}
	var missing []string
	for c, k := range l.pos {
		if k == Free {
			missing = append(missing, string(l.alphabet[c]))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("layout: %q does not place %s", s, strings.Join(missing, " "))
	}
	return l, nil
}

// FromAssignment builds a layout from a character to key mapping such as
// the one returned by Assignment. Characters outside alphabet are ignored.
func FromAssignment(alphabet []rune, keyCount int, keys map[string]int) (*Layout, error) {
	l, err := newEmpty(alphabet, keyCount)
	if err != nil {
		return nil, err
	}
	for i := range l.pos {
		l.pos[i] = Free
	}
	for s, k := range keys {
		runes := []rune(s)
		if len(runes) != 1 {
			return nil, fmt.Errorf("layout: %q is not a single character", s)
		}
		c, ok := l.Index(runes[0])
		if !ok {
			continue
		}
		if k < 0 || k >= keyCount {
			return nil, fmt.Errorf("layout: %q is on key %d, geometry has %d", s, k, keyCount)
		}
		if other := l.keys[k]; other != Free {
			return nil, fmt.Errorf("%w: %q and %q share key %d", ErrNotBijective, l.alphabet[other], runes[0], k)
		}
		l.pos[c] = k
		l.keys[k] = c
	}
	var missing []string
	for c, k := range l.pos {
		if k == Free {
			missing = append(missing, string(l.alphabet[c]))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("layout: assignment does not place %s", strings.Join(missing, " "))
	}
	return l, nil
}

// Alphabet returns the layout's characters; index i is character i.
func (l *Layout) Alphabet() []rune {
	out := make([]rune, len(l.alphabet))
	copy(out, l.alphabet)
	return out
}

// Len returns the number of characters.
func (l *Layout) Len() int { return len(l.alphabet) }

// KeyCount returns the number of keys.
func (l *Layout) KeyCount() int { return len(l.keys) }

// KeyOf returns the key holding character index c.
func (l *Layout) KeyOf(c int) int { return l.pos[c] }

// CharAt returns the character index on key k, or Free.
func (l *Layout) CharAt(k int) int { return l.keys[k] }

// Index returns the character index of r.
func (l *Layout) Index(r rune) (int, bool) {
	c, ok := l.index[r]
	return c, ok
}

// KeyOfRune returns the key holding r.
func (l *Layout) KeyOfRune(r rune) (int, bool) {
	c, ok := l.index[r]
	if !ok {
		return Free, false
	}
	return l.pos[c], true
}

// SwapKeys exchanges the contents of keys p and q, either of which may be free.
func (l *Layout) SwapKeys(p, q int) {
	a, b := l.keys[p], l.keys[q]
	l.keys[p], l.keys[q] = b, a
	if a != Free {
		l.pos[a] = q
	}
	if b != Free {
		l.pos[b] = p
	}
}

// Clone returns an independent copy.
func (l *Layout) Clone() *Layout {
	c := &Layout{
		alphabet: l.alphabet,
		index:    l.index,
		pos:      make([]int, len(l.pos)),
		keys:     make([]int, len(l.keys)),
	}
	copy(c.pos, l.pos)
	copy(c.keys, l.keys)
	return c
}

// CopyFrom overwrites l's assignment with src's. Both must come from the
// same alphabet and key count.
func (l *Layout) CopyFrom(src *Layout) {
	copy(l.pos, src.pos)
	copy(l.keys, src.keys)
}

// Validate checks that the assignment is a bijection between the alphabet
// and the occupied keys.
func (l *Layout) Validate() error {
	occupied := 0
	for k, c := range l.keys {
		if c == Free {
			continue
		}
		if c < 0 || c >= len(l.pos) {
			return fmt.Errorf("%w: key %d holds unknown character %d", ErrNotBijective, k, c)
		}
		if l.pos[c] != k {
			return fmt.Errorf("%w: key %d holds %q but it is placed on key %d", ErrNotBijective, k, l.alphabet[c], l.pos[c])
		}
		occupied++
	}
	if occupied != len(l.alphabet) {
		return fmt.Errorf("%w: %d keys occupied for %d characters", ErrNotBijective, occupied, len(l.alphabet))
	}
	return nil
}

// Assignment returns the character to key mapping.
func (l *Layout) Assignment() map[string]int {
	out := make(map[string]int, len(l.alphabet))
	for c, k := range l.pos {
		out[string(l.alphabet[c])] = k
	}
	return out
}

// FreeMarker returns the rune String renders free keys as: FreeRune, or a
// substitute when the alphabet contains it.
func (l *Layout) FreeMarker() rune {
	if _, taken := l.index[FreeRune]; !taken {
		return FreeRune
	}
	for _, r := range freeFallbacks {
		if _, taken := l.index[r]; !taken {
			return r
		}
	}
	for r := rune(0xE000); ; r++ {
		if _, taken := l.index[r]; !taken {
			return r
		}
	}
}

// String renders the layout in key order, free keys as l.FreeMarker(). The
// result round-trips through Parse.
func (l *Layout) String() string {
	free := l.FreeMarker()
	var sb strings.Builder
	for _, c := range l.keys {
		if c == Free {
			sb.WriteRune(free)
		} else {
			sb.WriteRune(l.alphabet[c])
		}
	}
	return sb.String()
}
