package sigfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
)

// defaultS3Endpoint is used when no endpoint is configured.
const defaultS3Endpoint = "s3.amazonaws.com"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ErrBadS3Path is returned for s3:// paths without a bucket or key.
var ErrBadS3Path = errors.New("malformed s3 path")

// readLocal maps the file read-only and copies it out before unmapping so no
// mapping outlives the call.
func readLocal(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	data := bytes.Clone(mm)

	err = mm.Unmap()
	if err != nil {
		return nil, fmt.Errorf("unmap %s: %w", path, err)
	}

	return data, nil
}

// splitS3 splits s3://bucket/key. ok is false for non-S3 paths.
func splitS3(path string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(path, collection.RemoteScheme)
	if !found {
		return "", "", false
	}

	bucket, key, _ = strings.Cut(rest, "/")

	return bucket, key, true
}

func (l *Loader) s3() (*minio.Client, error) {
	l.s3Once.Do(func() {
		endpoint := l.opts.S3.Endpoint
		if endpoint == "" {
			endpoint = defaultS3Endpoint
		}

		l.s3Client, l.s3Err = minio.New(endpoint, &minio.Options{
			Creds: credentials.NewChainCredentials([]credentials.Provider{
				&credentials.EnvAWS{},
				&credentials.EnvMinio{},
			}),
			Secure: l.opts.S3.Secure,
			Region: l.opts.S3.Region,
		})
		if l.s3Err != nil {
			l.s3Err = fmt.Errorf("s3 client for %s: %w", endpoint, l.s3Err)
		}
	})

	return l.s3Client, l.s3Err
}

func readS3(ctx context.Context, client *minio.Client, bucket, key string) ([]byte, error) {
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrEmptyFile)
	}

	return data, nil
}

// decompress inflates gzip and lz4-frame payloads; anything else is returned
// unchanged.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrDecode, err)
		}
		defer zr.Close()

		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrDecode, err)
		}

		return out, nil
	case bytes.HasPrefix(data, lz4Magic):
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrDecode, err)
		}

		return out, nil
	default:
		return data, nil
	}
}
