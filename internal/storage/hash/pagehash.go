package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	util "github.com/arrdb/pagecache/internal/utils"
)

// PageIDHash hashes a PageID with xxhash, the same primitive the page
// checksum uses.
func PageIDHash(id util.PageID) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return xxhash.Sum64(b[:])
}
