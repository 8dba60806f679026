package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base64("super-secret-key")
const testSecret = "c3VwZXItc2VjcmV0LWtleQ=="

func TestSign_KnownVectors(t *testing.T) {
	s, err := NewSigner(testSecret)
	require.NoError(t, err)

	assert.Equal(t, "k1uwIXGjAtb/bW1O9CTPjckmnFODTvWKVjb5Dsi4FrM=", s.Sign("GET", "v1/a/apps", nil))
	assert.Equal(t, "Rcq96/JBSgTWlSbM8GoPxRJGAZwpTLBRBeKHfiCCqA8=",
		s.Sign("POST", "v1/a/apps/billing", []byte(`{"createdBy": "octocat"}`)))
	assert.Equal(t, "adbFLx7vJ1Ekt9iE0kICriJwXWs793hkEcYj3d9n0HY=",
		s.Sign("POST", "v1/a/apps/billing", []byte(`{"createdBy": "octocat"}`), "billing"))
}

func TestSign_Deterministic(t *testing.T) {
	s, err := NewSigner(testSecret)
	require.NoError(t, err)

	body := []byte(`{"createdBy":"octocat"}`)
	first := s.Sign("POST", "v1/a/apps/billing", body)
	second := s.Sign("POST", "v1/a/apps/billing", body)
	assert.Equal(t, first, second)
}

func TestSign_EveryInputChangesSignature(t *testing.T) {
	key := []byte("super-secret-key")
	body := []byte(`{"createdBy":"octocat"}`)
	base := Sign("POST", "v1/a/apps/billing", body, nil, key)

	variants := map[string]string{
		"method":  Sign("GET", "v1/a/apps/billing", body, nil, key),
		"path":    Sign("POST", "v1/a/apps/billings", body, nil, key),
		"payload": Sign("POST", "v1/a/apps/billing", []byte(`{"createdBy":"hubot"}`), nil, key),
		"items":   Sign("POST", "v1/a/apps/billing", body, []string{"extra"}, key),
		"key":     Sign("POST", "v1/a/apps/billing", body, nil, []byte("other-key")),
	}
	for name, sig := range variants {
		assert.NotEqual(t, base, sig, name)
	}
}

func TestSign_PathIsNormalized(t *testing.T) {
	key := []byte("super-secret-key")
	assert.Equal(t,
		Sign("GET", "v1/a/apps", nil, nil, key),
		Sign("GET", "/v1/a/apps", nil, nil, key),
	)
}

func TestSign_NilAndEmptyPayloadMatch(t *testing.T) {
	key := []byte("super-secret-key")
	assert.Equal(t, Sign("GET", "v1/a/apps", nil, nil, key), Sign("GET", "v1/a/apps", []byte{}, []string{}, key))
}

func TestNewSigner_RejectsMalformedSecret(t *testing.T) {
	_, err := NewSigner("not base64!!")
	assert.Error(t, err)

	_, err = NewSigner("")
	assert.Error(t, err)
}
