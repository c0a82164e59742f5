// Package sketch provides the immutable FracMinHash sketch value used by every
// comparison in fastsketch, together with scaling arithmetic, compatibility
// checks and sketch selection.
//
// A Sketch holds a sorted set of unique 64-bit hashes. Scaled sketches keep
// every hash h with h <= MaxHash, where MaxHash is derived from the scaled
// factor, so two scaled sketches can always be compared at the coarser of
// their two scales.
package sketch

import (
	"errors"
	"fmt"
	"slices"
)

// Default parameter values, matching the sourmash signature defaults.
const (
	DefaultSeed         = 42
	DefaultMoltype      = "DNA"
	DefaultHashFunction = "0.murmur64"
)

var (
	// ErrIncompatible is the sentinel for sketches that must not be compared.
	ErrIncompatible = errors.New("incompatible sketches")

	// ErrNoCompatible is returned by Selection.Select when no sketch matches.
	ErrNoCompatible = errors.New("no compatible sketch")

	// ErrInvalidDownsample is returned when downsampling to a finer scale.
	ErrInvalidDownsample = errors.New("cannot downsample to a lower scaled value")
)

// IncompatibleError describes why two sketches cannot be compared.
// It matches ErrIncompatible under errors.Is.
type IncompatibleError struct {
	Reason string
}

// Error implements error.
func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIncompatible.Error(), e.Reason)
}

// Is reports whether target is ErrIncompatible.
func (e *IncompatibleError) Is(target error) bool {
	return target == ErrIncompatible
}

// Params are the sketching parameters that decide compatibility.
type Params struct {
	Ksize        uint32
	Scaled       uint64
	Num          uint32
	Seed         uint64
	Moltype      string
	HashFunction string
}

// Sketch is an immutable hash-set representation of a sequence collection.
// Hashes are unique and ascending. All methods are safe for concurrent use.
type Sketch struct {
	Name     string
	Filename string
	MD5      string

	params  Params
	maxHash uint64
	hashes  []uint64

	// originalSize estimates the cardinality of the set before any
	// subsampling. It survives Downsample so containment stays comparable.
	originalSize uint64
}

// New builds a Sketch from params and hashes. The hashes are copied, sorted
// and deduplicated; hashes above the max hash for params.Scaled are dropped.
// An empty MD5 is computed from ksize and hashes.
func New(name, filename, md5 string, params Params, hashes []uint64) *Sketch {
	params = params.withDefaults()
	maxHash := MaxHashForScaled(params.Scaled)

	kept := make([]uint64, 0, len(hashes))
	for _, h := range hashes {
		if maxHash == 0 || h <= maxHash {
			kept = append(kept, h)
		}
	}

	slices.Sort(kept)
	kept = slices.Compact(kept)

	sk := &Sketch{
		Name:     name,
		Filename: filename,
		MD5:      md5,
		params:   params,
		maxHash:  maxHash,
		hashes:   slices.Clip(kept),
	}

	sk.originalSize = uint64(len(kept)) * scaleFactor(params.Scaled)

	if sk.MD5 == "" {
		sk.MD5 = ComputeMD5(params.Ksize, sk.hashes)
	}

	return sk
}

func (p Params) withDefaults() Params {
	if p.Moltype == "" {
		p.Moltype = DefaultMoltype
	}

	if p.HashFunction == "" {
		p.HashFunction = DefaultHashFunction
	}

	return p
}

// Params returns the sketching parameters.
func (s *Sketch) Params() Params { return s.params }

// Ksize returns the k-mer size.
func (s *Sketch) Ksize() uint32 { return s.params.Ksize }

// Scaled returns the scaled factor, 0 for unscaled sketches.
func (s *Sketch) Scaled() uint64 { return s.params.Scaled }

// MaxHash returns the retention cut-off, 0 for unscaled sketches.
func (s *Sketch) MaxHash() uint64 { return s.maxHash }

// Moltype returns the molecule type.
func (s *Sketch) Moltype() string { return s.params.Moltype }

// IsScaled reports whether the sketch is a scaled (FracMinHash) sketch.
func (s *Sketch) IsScaled() bool { return s.params.Scaled > 0 }

// Hashes returns the sorted hashes. Callers must not modify the slice.
func (s *Sketch) Hashes() []uint64 { return s.hashes }

// Len returns the number of hashes held in memory.
func (s *Sketch) Len() int { return len(s.hashes) }

// IsEmpty reports whether the sketch has no hashes.
func (s *Sketch) IsEmpty() bool { return len(s.hashes) == 0 }

// OriginalSize returns the estimated cardinality before subsampling.
func (s *Sketch) OriginalSize() uint64 { return s.originalSize }

// DisplayName returns Name, falling back to Filename and then MD5.
func (s *Sketch) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}

	if s.Filename != "" {
		return s.Filename
	}

	return s.MD5
}

// SizeAt returns the number of hashes that are retained at maxHash.
// A zero maxHash keeps everything.
func (s *Sketch) SizeAt(maxHash uint64) int {
	if maxHash == 0 || (s.maxHash != 0 && maxHash >= s.maxHash) {
		return len(s.hashes)
	}

	idx, found := slices.BinarySearch(s.hashes, maxHash)
	if found {
		return idx + 1
	}

	return idx
}

// Downsample returns a sketch at the coarser scaled value. Name, MD5 and
// the original size estimate are kept. Downsampling to the same scaled
// value returns the receiver.
func (s *Sketch) Downsample(scaled uint64) (*Sketch, error) {
	if !s.IsScaled() {
		return nil, &IncompatibleError{Reason: "cannot downsample an unscaled sketch"}
	}

	if scaled == s.params.Scaled {
		return s, nil
	}

	if scaled < s.params.Scaled {
		return nil, fmt.Errorf("%w: %d < %d", ErrInvalidDownsample, scaled, s.params.Scaled)
	}

	maxHash := MaxHashForScaled(scaled)
	params := s.params
	params.Scaled = scaled

	return &Sketch{
		Name:         s.Name,
		Filename:     s.Filename,
		MD5:          s.MD5,
		params:       params,
		maxHash:      maxHash,
		hashes:       s.hashes[:s.SizeAt(maxHash)],
		originalSize: s.originalSize,
	}, nil
}

// WithHashes returns a derived sketch sharing the receiver's parameters and
// identity but holding hashes, which must already be sorted, unique and
// below the receiver's max hash. The original size is recomputed.
func (s *Sketch) WithHashes(hashes []uint64) *Sketch {
	return &Sketch{
		Name:         s.Name,
		Filename:     s.Filename,
		MD5:          s.MD5,
		params:       s.params,
		maxHash:      s.maxHash,
		hashes:       hashes,
		originalSize: uint64(len(hashes)) * scaleFactor(s.params.Scaled),
	}
}

// CheckCompatible returns an IncompatibleError when a and b cannot be compared.
func CheckCompatible(a, b *Sketch) error {
	switch {
	case a.params.Ksize != b.params.Ksize:
		return &IncompatibleError{Reason: fmt.Sprintf("ksize %d != %d", a.params.Ksize, b.params.Ksize)}
	case a.params.Moltype != b.params.Moltype:
		return &IncompatibleError{Reason: fmt.Sprintf("moltype %s != %s", a.params.Moltype, b.params.Moltype)}
	case a.params.Seed != b.params.Seed:
		return &IncompatibleError{Reason: fmt.Sprintf("seed %d != %d", a.params.Seed, b.params.Seed)}
	case a.params.HashFunction != b.params.HashFunction:
		return &IncompatibleError{Reason: fmt.Sprintf("hash function %s != %s", a.params.HashFunction, b.params.HashFunction)}
	case a.IsScaled() != b.IsScaled():
		return &IncompatibleError{Reason: "scaled and unscaled sketches"}
	case !a.IsScaled() && a.params.Num != b.params.Num:
		return &IncompatibleError{Reason: fmt.Sprintf("num %d != %d", a.params.Num, b.params.Num)}
	}

	return nil
}

// CommonScaled returns the scaled value two compatible sketches are
// compared at: the coarser one. Unscaled sketches return 0.
func CommonScaled(a, b *Sketch) uint64 {
	return max(a.params.Scaled, b.params.Scaled)
}
