package page

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	util "github.com/arrdb/pagecache/internal/utils"
)

// HeaderSize is the size of PageHeader once packed: PageID(8) +
// LSN(8) + Checksum(4) + Flags(2) + padding(2).
const HeaderSize = 24

const (
	// FlagDirty marks a page whose in-memory copy differs from disk.
	FlagDirty uint16 = 1 << 0
	// FlagPinned marks a page with at least one outstanding borrower.
	FlagPinned uint16 = 1 << 1
)

// Page is the fixed-size unit read from and written to disk.
type Page struct {
	Header PageHeader
	Data   [util.PageSize - HeaderSize]byte
}

// PageHeader is the metadata packed at the front of every serialized
// page.
type PageHeader struct {
	PageID   util.PageID // 8 bytes
	LSN      uint64      // 8 bytes, log sequence number of the last write
	Checksum uint32      // 4 bytes, xxhash of Data truncated to 32 bits
	Flags    uint16      // 2 bytes
	_        uint16      // padding
}

func (h *PageHeader) SetDirtyFlag()   { h.Flags |= FlagDirty }
func (h *PageHeader) ClearDirtyFlag() { h.Flags &^= FlagDirty }
func (h *PageHeader) IsDirty() bool   { return h.Flags&FlagDirty != 0 }

func (h *PageHeader) SetPinnedFlag()   { h.Flags |= FlagPinned }
func (h *PageHeader) ClearPinnedFlag() { h.Flags &^= FlagPinned }
func (h *PageHeader) IsPinned() bool   { return h.Flags&FlagPinned != 0 }

// checksum hashes the page payload with xxhash, the same primitive the
// extendible hash directory uses for key hashing.
func checksum(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

// Serialize packs the page into a PageSize-byte slice ready to write.
func (p *Page) Serialize() []byte {
	p.Header.Checksum = checksum(p.Data[:])

	buf := make([]byte, util.PageSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.Header.PageID))
	binary.LittleEndian.PutUint64(buf[8:16], p.Header.LSN)
	binary.LittleEndian.PutUint32(buf[16:20], p.Header.Checksum)
	binary.LittleEndian.PutUint16(buf[20:22], p.Header.Flags)
	copy(buf[HeaderSize:], p.Data[:])
	return buf
}

// Deserialize unpacks a PageSize-byte slice, validating the payload
// checksum.
func Deserialize(data []byte) (*Page, error) {
	if len(data) != util.PageSize {
		return nil, fmt.Errorf("deserialize page: %w (got %d bytes)", util.ErrPageOutOfBounds, len(data))
	}

	p := &Page{}
	p.Header.PageID = util.PageID(binary.LittleEndian.Uint64(data[0:8]))
	p.Header.LSN = binary.LittleEndian.Uint64(data[8:16])
	p.Header.Checksum = binary.LittleEndian.Uint32(data[16:20])
	p.Header.Flags = binary.LittleEndian.Uint16(data[20:22])
	copy(p.Data[:], data[HeaderSize:])

	if got := checksum(p.Data[:]); got != p.Header.Checksum {
		return nil, fmt.Errorf("page %d: %w (want %x got %x)", p.Header.PageID, util.ErrChecksumMismatch, p.Header.Checksum, got)
	}

	return p, nil
}
