package util

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Hex returns the lowercase hex MD5 digest of s.
//
// MD5 is what the legacy game client computes for passwords; the stored
// hashes are only ever compared against client-supplied digests, so the
// scheme must be preserved byte for byte.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
