// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key returns the content address for a (model, text) pair: the SHA-256
// hex digest of model and text joined by a NUL byte. Including the model
// means switching embedding models naturally invalidates old entries.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
