// Package signer computes the request signature expected by the event
// collector API.
//
// The scheme carries no timestamp or nonce, so a captured signature can be
// replayed for the same method, path and body. It is kept as is for wire
// compatibility with the backend.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const separator = "\n"

// Signer holds the decoded shared secret.
type Signer struct {
	key []byte
}

// NewSigner decodes the base64 shared secret. A malformed secret is a
// configuration error and should stop the process at startup.
func NewSigner(secret string) (*Signer, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode event collector secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("event collector secret is empty")
	}
	return &Signer{key: key}, nil
}

// Sign signs one request with the shared secret.
func (s *Signer) Sign(method, path string, payload []byte, items ...string) string {
	return Sign(method, path, payload, items, s.key)
}

// Sign returns base64(HMAC-SHA256(key, items... + "\n" + base64(sha256(reqStr))))
// where reqStr is method, path and base64(sha256(payload)) joined by newlines.
func Sign(method, path string, payload []byte, items []string, key []byte) string {
	encodedPayload := hashAndEncode(payload)
	encodedReqStr := hashAndEncode([]byte(requestString(method, path, encodedPayload)))

	parts := make([]string, 0, len(items)+1)
	parts = append(parts, items...)
	parts = append(parts, encodedReqStr)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.Join(parts, separator)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func requestString(method, path, encodedPayload string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.Join([]string{method, path, encodedPayload}, separator)
}

func hashAndEncode(value []byte) string {
	sum := sha256.Sum256(value)
	return base64.StdEncoding.EncodeToString(sum[:])
}
