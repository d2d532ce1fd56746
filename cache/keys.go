package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// DeriveKey builds the cache key for one call: the operation name, each
// positional argument in call order, then each named argument rendered as
// "name=value" sorted by name, joined and hashed to a fixed-length hex
// digest. The same logical call always yields the same key; reordering
// positional arguments yields a different one.
func DeriveKey(op string, args []string, kv map[string]string) string {
	parts := make([]string, 0, 1+len(args)+len(kv))
	parts = append(parts, op)
	parts = append(parts, args...)

	if len(kv) > 0 {
		names := make([]string, 0, len(kv))
		for name := range kv {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, name+"="+kv[name])
		}
	}

	sum := md5.Sum([]byte(strings.Join(parts, "_")))
	return hex.EncodeToString(sum[:])
}
