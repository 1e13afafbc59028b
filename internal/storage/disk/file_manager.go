package disk

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/arrdb/pagecache/internal/storage/page"
	util "github.com/arrdb/pagecache/internal/utils"
)

// FileManager is a file-backed Manager. Pages are stored at a fixed
// offset (pageID * PageSize) inside a single backing file, grown with
// Truncate as new pages are allocated.
type FileManager struct {
	mu       sync.Mutex
	file     *os.File
	size     int64       // current backing-file size in bytes
	nextID   util.PageID // next page id to hand out if freeList is empty
	freeList []util.PageID
}

// NewFileManager opens (creating if necessary) the backing file at
// path and pre-sizes it to hold initialPages pages.
func NewFileManager(path string, initialPages int) (*FileManager, error) {
	if initialPages <= 0 {
		return nil, util.ErrInvalidInitialPages
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	size := int64(initialPages) * int64(util.PageSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate to %d: %w", size, err)
	}

	return &FileManager{file: f, size: size}, nil
}

// AllocatePage hands out the next unused page id, preferring ids freed
// by a previous DeallocatePage over growing the namespace.
func (fm *FileManager) AllocatePage() (util.PageID, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if n := len(fm.freeList); n > 0 {
		id := fm.freeList[n-1]
		fm.freeList = fm.freeList[:n-1]
		return id, nil
	}

	id := fm.nextID
	fm.nextID++

	if err := fm.growLocked(int64(id)+1); err != nil {
		fm.nextID--
		return util.InvalidPageID, err
	}
	return id, nil
}

// DeallocatePage releases pageID for reuse by a future AllocatePage.
func (fm *FileManager) DeallocatePage(pageID util.PageID) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.freeList = append(fm.freeList, pageID)
	return nil
}

// ReadPage fills exactly PageSize bytes from the backing file and
// deserializes them.
func (fm *FileManager) ReadPage(pageID util.PageID) (*page.Page, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	offset := int64(pageID) * int64(util.PageSize)
	if offset+util.PageSize > fm.size {
		return nil, fmt.Errorf("read page %d: %w", pageID, util.ErrPageOutOfBounds)
	}

	buf := make([]byte, util.PageSize)
	if _, err := fm.file.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageID, err)
	}

	p, err := page.Deserialize(buf)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageID, err)
	}
	return p, nil
}

// WritePage persists exactly PageSize bytes, growing the backing file
// first if pageID falls beyond its current extent.
func (fm *FileManager) WritePage(p *page.Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	offset := int64(p.Header.PageID) * int64(util.PageSize)
	if need := offset + util.PageSize; need > fm.size {
		if err := fm.growLocked(int64(p.Header.PageID) + 1); err != nil {
			return fmt.Errorf("write page %d: %w", p.Header.PageID, err)
		}
	}

	if _, err := fm.file.WriteAt(p.Serialize(), offset); err != nil {
		return fmt.Errorf("write page %d: %w", p.Header.PageID, err)
	}
	return nil
}

// growLocked ensures the backing file can hold pageCount pages. Caller
// holds fm.mu.
func (fm *FileManager) growLocked(pageCount int64) error {
	need := pageCount * int64(util.PageSize)
	if need <= fm.size {
		return nil
	}
	if need > util.MaxMapSize {
		return util.ErrMaxMapSizeExceeded
	}
	if err := fm.file.Truncate(need); err != nil {
		return fmt.Errorf("truncate to %d: %w", need, err)
	}
	fm.size = need
	return nil
}

// Close flushes and closes the backing file. Idempotent.
func (fm *FileManager) Close() error {
	if fm == nil || fm.file == nil {
		return nil
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var err error
	if e := fm.file.Sync(); e != nil {
		err = errors.Join(err, fmt.Errorf("sync: %w", e))
	}
	if e := fm.file.Close(); e != nil {
		err = errors.Join(err, fmt.Errorf("close: %w", e))
	}
	fm.file = nil
	return err
}
