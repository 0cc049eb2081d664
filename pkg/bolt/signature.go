package bolt

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// remoteVerifier is the processor-side fallback used when no signing secret
// is configured locally.
type remoteVerifier interface {
	VerifySignature(ctx context.Context, payload []byte, suppliedHmac string) (bool, error)
}

// SignatureVerifier authenticates webhook payloads. The primary path is a
// local HMAC-SHA256 check; the fallback defers to the processor's own
// verification endpoint. Both paths fail closed.
type SignatureVerifier struct {
	secret []byte
	remote remoteVerifier
}

// NewSignatureVerifier builds a verifier from the shared signing secret.
// An empty secret forces the remote fallback path.
func NewSignatureVerifier(secret string, remote remoteVerifier) *SignatureVerifier {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &SignatureVerifier{secret: key, remote: remote}
}

// Verify reports whether the supplied HMAC header authenticates the raw
// payload bytes. Any failure along either path counts as not verified.
func (v *SignatureVerifier) Verify(ctx context.Context, payload []byte, suppliedHmac string) bool {
	if v == nil || suppliedHmac == "" {
		return false
	}

	if len(v.secret) > 0 {
		mac := hmac.New(sha256.New, v.secret)
		if _, err := mac.Write(payload); err != nil {
			return false
		}
		computed := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(computed), []byte(suppliedHmac))
	}

	if v.remote == nil {
		return false
	}
	ok, err := v.remote.VerifySignature(ctx, payload, suppliedHmac)
	if err != nil {
		return false
	}
	return ok
}
