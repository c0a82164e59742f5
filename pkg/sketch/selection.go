package sketch

import (
	"fmt"
	"strings"
)

// Selection picks the sketch to use out of everything a file contains.
// Zero fields match anything.
type Selection struct {
	Ksize   uint32
	Scaled  uint64
	Moltype string
}

// String renders the selection for log messages.
func (sel Selection) String() string {
	return fmt.Sprintf("ksize=%d scaled=%d moltype=%s", sel.Ksize, sel.Scaled, sel.moltypeOrAny())
}

func (sel Selection) moltypeOrAny() string {
	if sel.Moltype == "" {
		return "any"
	}

	return sel.Moltype
}

// Matches reports whether sk can serve the selection, possibly after
// downsampling.
func (sel Selection) Matches(sk *Sketch) bool {
	if sel.Ksize != 0 && sk.Ksize() != sel.Ksize {
		return false
	}

	if sel.Moltype != "" && !strings.EqualFold(sk.Moltype(), sel.Moltype) {
		return false
	}

	if sel.Scaled == 0 {
		return true
	}

	return sk.IsScaled() && sk.Scaled() <= sel.Scaled
}

// Select returns the first sketch matching the selection, downsampled to
// the selected scaled value. The original MD5 is kept on the result.
func (sel Selection) Select(candidates []*Sketch) (*Sketch, error) {
	for _, sk := range candidates {
		if !sel.Matches(sk) {
			continue
		}

		if sel.Scaled == 0 {
			return sk, nil
		}

		return sk.Downsample(sel.Scaled)
	}

	return nil, fmt.Errorf("%w (%s)", ErrNoCompatible, sel)
}
