// Package integrity provides content addressing for bundle artifacts.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prefix is the algorithm tag carried by every digest string.
const Prefix = "sha256:"

// Digest is a content address of the form "sha256:<64 lowercase hex>".
type Digest string

// SumBytes digests b.
func SumBytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(Prefix + hex.EncodeToString(sum[:]))
}

// SumReader digests everything read from r and returns the byte count.
func SumReader(r io.Reader) (Digest, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("hash stream: %w", err)
	}
	return Digest(Prefix + hex.EncodeToString(h.Sum(nil))), n, nil
}

// SumFile digests the file at path.
func SumFile(path string) (Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	d, n, err := SumReader(f)
	if err != nil {
		return "", n, fmt.Errorf("%s: %w", path, err)
	}
	return d, n, nil
}

// ParseDigest validates s and returns it as a Digest. Uppercase hex is
// rejected so that digests compare as plain strings.
func ParseDigest(s string) (Digest, error) {
	hexPart, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return "", fmt.Errorf("digest %q: missing %q prefix", s, Prefix)
	}
	if len(hexPart) != sha256.Size*2 {
		return "", fmt.Errorf("digest %q: want %d hex characters, got %d", s, sha256.Size*2, len(hexPart))
	}
	for _, c := range hexPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("digest %q: not lowercase hex", s)
		}
	}
	return Digest(s), nil
}

// Hex returns the digest without its algorithm prefix.
func (d Digest) Hex() string {
	return strings.TrimPrefix(string(d), Prefix)
}

func (d Digest) String() string {
	return string(d)
}
