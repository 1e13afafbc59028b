package buffer

import (
	"github.com/arrdb/pagecache/internal/storage/page"
	util "github.com/arrdb/pagecache/internal/utils"
)

// frame is one slot of the pool's fixed frame array. It is
// allocated once, at pool construction, and never destroyed before
// the pool itself; only its contents (page, pinCount, dirty) change
// as it moves between the Free, Pinned, and UnpinnedResident states.
type frame struct {
	page     *page.Page
	pinCount int
	dirty    bool
}

func newFrame() *frame {
	return &frame{page: &page.Page{Header: page.PageHeader{PageID: util.InvalidPageID}}}
}

// reset returns the frame to the Free state: no page id, zeroed
// buffer, pin count and dirty both cleared.
func (f *frame) reset() {
	f.page.Header = page.PageHeader{PageID: util.InvalidPageID}
	for i := range f.page.Data {
		f.page.Data[i] = 0
	}
	f.pinCount = 0
	f.dirty = false
}

// bind rebinds a Free frame to pageID with a freshly zeroed buffer,
// pinning it once.
func (f *frame) bind(pageID util.PageID) {
	f.page.Header = page.PageHeader{PageID: pageID}
	for i := range f.page.Data {
		f.page.Data[i] = 0
	}
	f.pinCount = 1
	f.dirty = false
}
