package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/satriahrh/edge-assistant/domain"
)

// New returns a domain.Hasher backed by SHA‑256. The namespace is mixed into
// every digest so identifiers derived for different purposes never collide.
func New(namespace string) domain.Hasher { return sha256Hasher{namespace: namespace} }

type sha256Hasher struct {
	namespace string
}

// Hash returns the first 16 bytes of the digest, hex encoded.
func (h sha256Hasher) Hash(data []byte) string {
	sum := sha256.New()
	sum.Write([]byte(h.namespace))
	sum.Write([]byte{0})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil)[:16])
}
