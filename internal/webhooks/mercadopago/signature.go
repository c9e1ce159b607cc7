package mpwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// verifySignature checks the x-signature header against an HMAC-SHA256 of
// the raw body. The provider wraps the digest in a ts/v1 envelope, so a
// header that contains the digest also passes.
func verifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	digest := hex.EncodeToString(mac.Sum(nil))
	if hmac.Equal([]byte(header), []byte(digest)) {
		return true
	}
	return strings.Contains(header, digest)
}
