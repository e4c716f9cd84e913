// Package idcodec derives and parses symbol identities.
//
// A SymbolID is the first eight bytes of the big-endian xxhash64 digest of a
// canonical symbol descriptor (a USR such as "c:@N@ns@S@Foo"). The same
// descriptor always yields the same ID, in any process and on any machine.
package idcodec

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/symindex/internal/types"
)

// FromUSR returns the identity of the symbol described by usr.
func FromUSR(usr string) types.SymbolID {
	var id types.SymbolID
	binary.BigEndian.PutUint64(id[:], xxhash.Sum64String(usr))
	return id
}

// Encode returns the canonical text form of id.
func Encode(id types.SymbolID) string {
	return id.String()
}

// Decode parses the canonical text form. Surrounding whitespace is ignored
// and lower-case hex digits are accepted.
func Decode(encoded string) (types.SymbolID, error) {
	return types.ParseSymbolID(strings.ToUpper(strings.TrimSpace(encoded)))
}

// DecodeList parses a list of IDs. Entries may themselves be comma separated,
// which is how the CLI and the MCP tools receive them. Duplicates are kept;
// the index deduplicates requests itself.
func DecodeList(encoded []string) ([]types.SymbolID, error) {
	ids := make([]types.SymbolID, 0, len(encoded))
	for _, e := range encoded {
		for _, part := range strings.Split(e, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := Decode(part)
			if err != nil {
				return nil, fmt.Errorf("invalid symbol id: %w", err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
