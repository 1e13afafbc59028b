package page

import (
	util "github.com/arrdb/pagecache/internal/utils"
)

// NewTestPage builds an in-memory page for tests without touching disk.
func NewTestPage(pageID util.PageID, data []byte) *Page {
	p := &Page{
		Header: PageHeader{
			PageID: pageID,
		},
	}
	if len(data) > len(p.Data) {
		data = data[:len(p.Data)]
	}
	copy(p.Data[:], data)
	return p
}
