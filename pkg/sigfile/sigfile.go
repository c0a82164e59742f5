// Package sigfile reads and writes sourmash-compatible signature files.
//
// A signature file is a JSON array (or a single JSON object) of signature
// records, each holding one or more MinHash sketches. Files may be plain,
// gzip or lz4-frame compressed; the codec is detected from the leading magic
// bytes, not the file name. Paths of the form s3://bucket/key are fetched
// from S3-compatible object storage.
package sigfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"

	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

var (
	// ErrEmptyFile is returned for zero-length signature files.
	ErrEmptyFile = errors.New("empty signature file")

	// ErrDecode is returned when the content is not a valid signature document.
	ErrDecode = errors.New("decode signature")

	// ErrSchema is returned by strict loading when the document violates the schema.
	ErrSchema = errors.New("signature schema violation")

	// ErrNoSketches is returned when a document holds no sketch at all.
	ErrNoSketches = errors.New("no sketches in signature file")
)

// signatureClass is the class tag written into every record.
const signatureClass = "sourmash_signature"

const signatureVersion = 0.4

// record is one signature: a named sample with its sketches.
type record struct {
	Class        string    `json:"class"`
	Email        string    `json:"email"`
	HashFunction string    `json:"hash_function"`
	Filename     string    `json:"filename"`
	Name         string    `json:"name,omitempty"`
	License      string    `json:"license"`
	Signatures   []minhash `json:"signatures"`
	Version      float64   `json:"version"`
}

type minhash struct {
	Num        uint32   `json:"num"`
	Ksize      uint32   `json:"ksize"`
	Seed       *uint64  `json:"seed"`
	MaxHash    uint64   `json:"max_hash"`
	Mins       []uint64 `json:"mins"`
	MD5Sum     string   `json:"md5sum"`
	Molecule   string   `json:"molecule"`
	Abundances []uint64 `json:"abundances,omitempty"`
}

// S3Options configures access to s3:// paths. Credentials come from the
// standard AWS_* or MINIO_* environment variables.
type S3Options struct {
	Endpoint string
	Region   string
	Secure   bool
}

// Options configures a Loader.
type Options struct {
	// StrictSchema validates every document against the signature JSON schema.
	StrictSchema bool
	S3           S3Options
}

// Loader loads signature files from local disk or S3. It is safe for
// concurrent use.
type Loader struct {
	opts Options

	s3Once   sync.Once
	s3Client *minio.Client
	s3Err    error
}

// NewLoader creates a Loader.
func NewLoader(opts Options) *Loader {
	return &Loader{opts: opts}
}

// Load reads every sketch stored at path, in file order.
func (l *Loader) Load(ctx context.Context, path string) ([]*sketch.Sketch, error) {
	raw, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}

	data, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if l.opts.StrictSchema {
		err = validate(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	sketches, err := Decode(data, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sketches, nil
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	if bucket, key, ok := splitS3(path); ok {
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("%w: %s", ErrBadS3Path, path)
		}

		client, err := l.s3()
		if err != nil {
			return nil, err
		}

		return readS3(ctx, client, bucket, key)
	}

	return readLocal(path)
}

// Decode parses an uncompressed signature document. location is used as the
// filename of records that do not carry one.
func Decode(data []byte, location string) ([]*sketch.Sketch, error) {
	records, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}

	var out []*sketch.Sketch

	for _, rec := range records {
		filename := rec.Filename
		if filename == "" {
			filename = location
		}

		name := rec.Name
		if name == "" {
			name = filename
		}

		for _, mh := range rec.Signatures {
			params := sketch.Params{
				Ksize:        mh.Ksize,
				Scaled:       sketch.ScaledForMaxHash(mh.MaxHash),
				Num:          mh.Num,
				Seed:         seedOrDefault(mh.Seed),
				Moltype:      normalizeMoltype(mh.Molecule),
				HashFunction: rec.HashFunction,
			}

			out = append(out, sketch.New(name, filename, mh.MD5Sum, params, mh.Mins))
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSketches
	}

	return out, nil
}

// seedOrDefault reads the seed field. Only a missing field takes the default;
// an explicit 0 is kept.
func seedOrDefault(seed *uint64) uint64 {
	if seed == nil {
		return sketch.DefaultSeed
	}

	return *seed
}

func decodeRecords(data []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyFile
	}

	if trimmed[0] == '{' {
		var rec record

		err := json.Unmarshal(trimmed, &rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}

		return []record{rec}, nil
	}

	var records []record

	err := json.Unmarshal(trimmed, &records)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return records, nil
}

// normalizeMoltype maps the molecule names used in signature files onto the
// canonical spelling: "DNA" upper case, everything else lower case.
func normalizeMoltype(molecule string) string {
	if molecule == "" || strings.EqualFold(molecule, "dna") {
		return sketch.DefaultMoltype
	}

	return strings.ToLower(molecule)
}
