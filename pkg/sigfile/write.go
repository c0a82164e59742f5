package sigfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Write encodes sketches as a signature document, one record per sketch.
func Write(w io.Writer, sketches ...*sketch.Sketch) error {
	records := make([]record, 0, len(sketches))

	for _, sk := range sketches {
		params := sk.Params()

		mins := sk.Hashes()
		if mins == nil {
			mins = []uint64{}
		}

		records = append(records, record{
			Class:        signatureClass,
			HashFunction: params.HashFunction,
			Filename:     sk.Filename,
			Name:         sk.Name,
			License:      "CC0",
			Version:      signatureVersion,
			Signatures: []minhash{{
				Num:      params.Num,
				Ksize:    params.Ksize,
				Seed:     &params.Seed,
				MaxHash:  sk.MaxHash(),
				Mins:     mins,
				MD5Sum:   sk.MD5,
				Molecule: strings.ToLower(params.Moltype),
			}},
		})
	}

	err := json.NewEncoder(w).Encode(records)
	if err != nil {
		return fmt.Errorf("encode signatures: %w", err)
	}

	return nil
}

// WriteFile writes sketches to path, gzip-compressed when path ends in ".gz".
func WriteFile(path string, sketches ...*sketch.Sketch) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return Write(f, sketches...)
	}

	zw := gzip.NewWriter(f)

	err = Write(zw, sketches...)
	if err != nil {
		return err
	}

	return zw.Close()
}
