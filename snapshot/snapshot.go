// Package snapshot defines the acquired-markup type shared by the capture,
// compare and history packages. A Snapshot is one complete HTML document
// together with where and when it was taken.
package snapshot

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/ssrdiff/idgen"
)

// Kind says which side of a comparison a snapshot belongs to.
type Kind string

const (
	KindReference Kind = "reference" // server-delivered markup, fetched over HTTP
	KindRendered  Kind = "rendered"  // live document serialised by a browser
)

// Snapshot is a complete serialised document.
type Snapshot struct {
	ID        string `json:"id"` // UUIDv7
	Kind      Kind   `json:"kind"`
	PageURL   string `json:"page_url"`
	HTML      []byte `json:"html"`
	HTMLHash  string `json:"html_hash"` // SHA-256 hex
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// New builds a Snapshot stamped with a fresh ID, hash and the current time.
func New(kind Kind, pageURL string, html []byte) Snapshot {
	return Snapshot{
		ID:        idgen.New(),
		Kind:      kind,
		PageURL:   pageURL,
		HTML:      html,
		HTMLHash:  HashHTML(html),
		Timestamp: time.Now().UnixMilli(),
	}
}

// String returns the markup as a string.
func (s Snapshot) String() string { return string(s.HTML) }

// Empty reports whether the snapshot carries no markup.
func (s Snapshot) Empty() bool { return len(s.HTML) == 0 }

// Marshal serialises a Snapshot to JSON.
func Marshal(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal deserialises a Snapshot from JSON.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes.
func HashHTML(html []byte) string {
	h := sha256.Sum256(html)
	return fmt.Sprintf("%x", h)
}
