// Package etag computes S3-style content etags: a plain MD5 hex digest
// for content that fits in a single part, and the multipart form
// "<md5-of-part-digests>-<parts>" for anything larger. Most self-hosted
// file servers (and S3 itself) report etags in exactly this shape, which
// is what makes local/remote etag equality checks meaningful.
package etag

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// PartSize is the fixed chunk size used for multipart etags.
const PartSize = 5 * 1024 * 1024

// HashReader computes the etag of everything readable from r.
// Deterministic and safe to call concurrently on different readers.
func HashReader(r io.Reader) (string, error) {
	var partDigests []byte
	parts := 0

	buf := make([]byte, PartSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			sum := md5.Sum(buf[:n])
			partDigests = append(partDigests, sum[:]...)
			parts++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
	}

	if parts == 0 {
		// empty content hashes as a single empty part
		sum := md5.Sum(nil)
		return fmt.Sprintf("%x", sum), nil
	}

	if parts == 1 {
		return fmt.Sprintf("%x", partDigests), nil
	}

	sum := md5.Sum(partDigests)
	return fmt.Sprintf("%x-%d", sum, parts), nil
}

// HashFile computes the etag of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}
