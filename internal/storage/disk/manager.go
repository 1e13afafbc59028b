// Package disk implements the disk-manager collaborator the buffer
// pool consumes through the Manager interface: block I/O plus page
// allocation and deallocation over a single backing file.
package disk

import (
	"github.com/arrdb/pagecache/internal/storage/page"
	util "github.com/arrdb/pagecache/internal/utils"
)

// Manager is the external disk collaborator the buffer pool drives.
type Manager interface {
	// AllocatePage returns a fresh page id, never colliding with a
	// currently live one.
	AllocatePage() (util.PageID, error)
	// DeallocatePage releases a page id for reuse. The caller
	// guarantees the frame holding it has already been evicted and
	// clean.
	DeallocatePage(pageID util.PageID) error
	// ReadPage fills a Page with exactly PageSize bytes read from
	// disk.
	ReadPage(pageID util.PageID) (*page.Page, error)
	// WritePage persists exactly PageSize bytes to disk.
	WritePage(p *page.Page) error
}
