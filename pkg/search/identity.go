package search

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
)

// ErrIdentityCollision is returned when two multi-gather queries would write
// to the same output files.
var ErrIdentityCollision = errors.New("output identity collision")

// ErrUnknownIdentity is returned for unrecognised identity modes.
var ErrUnknownIdentity = errors.New("unknown identity mode")

// IdentityMode selects how multi-gather names per-query output files.
type IdentityMode string

// Identity modes.
const (
	// IdentityStem uses the query file name without its sketch suffix.
	IdentityStem IdentityMode = "stem"
	// IdentityHash appends a hash of the absolute query path to the stem.
	IdentityHash IdentityMode = "hash"
)

// ParseIdentityMode parses s; an empty string means IdentityStem.
func ParseIdentityMode(s string) (IdentityMode, error) {
	switch mode := IdentityMode(strings.ToLower(s)); mode {
	case "", IdentityStem:
		return IdentityStem, nil
	case IdentityHash:
		return IdentityHash, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownIdentity, s)
	}
}

func stem(location string) string {
	base := path.Base(location)
	if !collection.IsRemote(location) {
		base = filepath.Base(location)
	}

	return collection.TrimSketchSuffix(base)
}

func pathHash(location string) string {
	key := location

	if !collection.IsRemote(location) {
		abs, err := filepath.Abs(location)
		if err == nil {
			key = abs
		}

		key = filepath.Clean(key)
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// Identities derives one output identity per query location. Duplicate
// identities fail with ErrIdentityCollision naming both locations.
func Identities(locations []string, mode IdentityMode) ([]string, error) {
	ids := make([]string, len(locations))
	owner := make(map[string]string, len(locations))

	for i, loc := range locations {
		id := stem(loc)
		if mode == IdentityHash {
			id += "-" + pathHash(loc)
		}

		if prev, ok := owner[id]; ok {
			return nil, fmt.Errorf("%w: %q is derived from both %s and %s (use identity mode %q)",
				ErrIdentityCollision, id, prev, loc, IdentityHash)
		}

		owner[id] = loc
		ids[i] = id
	}

	return ids, nil
}
