// Package fingerprint computes the deterministic content fingerprint of one
// fetched document snapshot: a binary hash over the raw bytes, a semantic
// hash over normalized extracted text, and one hash per page.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/formwatch/formwatch/internal/textutil"
)

const hashChunkSize = 8192

// Fingerprint identifies the content of one document snapshot. Values are
// hex-encoded SHA-256 digests. A Fingerprint is never mutated after
// computation; page hashes are positional, page 1 first.
type Fingerprint struct {
	BinaryHash string   `json:"binary_hash"`
	TextHash   string   `json:"text_hash"`
	PageHashes []string `json:"page_hashes"`
	ByteSize   int64    `json:"byte_size"`
	TextLength int      `json:"text_length"`
}

// PageCount returns the number of pages the snapshot was extracted into.
func (f Fingerprint) PageCount() int { return len(f.PageHashes) }

// Compute fingerprints a snapshot from its raw bytes, full extracted text
// and per-page extracted text. Pure: identical inputs always produce an
// identical Fingerprint.
func Compute(raw []byte, fullText string, pageTexts []string) Fingerprint {
	fp := Fingerprint{
		BinaryHash: HashBytes(raw),
		TextHash:   HashText(fullText),
		ByteSize:   int64(len(raw)),
		TextLength: len(fullText),
	}
	if len(pageTexts) > 0 {
		fp.PageHashes = make([]string, len(pageTexts))
		for i, page := range pageTexts {
			fp.PageHashes[i] = HashText(page)
		}
	}
	return fp
}

// ComputeReader is Compute for callers that stream the raw bytes instead of
// holding them in memory. The reader is consumed in fixed-size chunks.
func ComputeReader(r io.Reader, fullText string, pageTexts []string) (Fingerprint, error) {
	h := sha256.New()
	n, err := io.CopyBuffer(h, r, make([]byte, hashChunkSize))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hash raw bytes: %w", err)
	}
	fp := Compute(nil, fullText, pageTexts)
	fp.BinaryHash = hex.EncodeToString(h.Sum(nil))
	fp.ByteSize = n
	return fp, nil
}

// HashBytes returns the hex SHA-256 of raw bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashText returns the hex SHA-256 of normalized text. Normalization absorbs
// extraction jitter, so semantically identical text always hashes the same
// regardless of which extractor produced it.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(textutil.Normalize(text)))
	return hex.EncodeToString(sum[:])
}
