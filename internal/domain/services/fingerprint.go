package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// Fingerprint returns the content hash of an entity's semantic text.
//
// Fields are hashed as sorted name/value pairs with surrounding whitespace
// removed, so the order a record lists its fields in never changes the result.
// Empty fields are skipped.
func Fingerprint(e entities.SourceEntity) string {
	fields := e.TextFields()
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		pairs = append(pairs, f.Name+"\x1f"+value)
	}
	sort.Strings(pairs)

	h := sha256.New()
	h.Write([]byte(e.Ref().Type))
	for _, p := range pairs {
		h.Write([]byte{0x1e})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
