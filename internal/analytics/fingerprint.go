// Package analytics implements the interactive query layer: content
// fingerprints, the shared result cache, and the chart/stat query engine
// answering histogram, bar, line, scatter, correlation, and PCA requests
// over a canonical matrix.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"genelab/pkg/domain"
)

// Fingerprint derives a stable content signature from a dataset's version
// metadata. It changes whenever the canonical matrix is rewritten, because
// canonicalization bumps the record's updated_at and row count.
func Fingerprint(ds domain.Dataset) string {
	raw := fmt.Sprintf("%s:%s:%d", ds.ID, ds.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"), ds.NRows)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Signature is a cheap stat-based file version marker used by preview and
// schema caching.
type Signature struct {
	Size  int64 `json:"size"`
	MTime int64 `json:"mtime"`
}

// FileSignature stats the file at path. A missing file surfaces as
// domain.ErrNotFound, distinct from malformed content.
func FileSignature(path string) (Signature, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Signature{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return Signature{}, err
	}
	return Signature{Size: info.Size(), MTime: info.ModTime().Unix()}, nil
}

// CacheKey combines a subject identifier, a request kind, a content
// signature, and the request's semantic parameters into a stable key. JSON
// marshaling sorts map keys, so equal parameter maps produce equal keys.
func CacheKey(subjectID, kind string, signature any, params any) string {
	payload, _ := json.Marshal(struct {
		ID     string `json:"id"`
		Kind   string `json:"kind"`
		Sig    any    `json:"sig,omitempty"`
		Params any    `json:"params,omitempty"`
	}{ID: subjectID, Kind: kind, Sig: signature, Params: params})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
