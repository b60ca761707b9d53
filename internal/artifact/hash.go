package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/smartguitar/sgc/internal/integrity"
)

type hashingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func newHashingWriter(w io.Writer) *hashingWriter {
	return &hashingWriter{w: w, h: sha256.New()}
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

func (hw *hashingWriter) digest() integrity.Digest {
	return integrity.Digest(integrity.Prefix + hex.EncodeToString(hw.h.Sum(nil)))
}
