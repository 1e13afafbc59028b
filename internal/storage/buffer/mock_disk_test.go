package buffer

import (
	"errors"
	"sync"

	"github.com/arrdb/pagecache/internal/storage/page"
	util "github.com/arrdb/pagecache/internal/utils"
)

var errMockDiskFailure = errors.New("mock disk failure")

// mockDisk is an in-memory disk.Manager double that counts calls, used
// to assert on allocation/write/dealloc behavior without touching a
// real file.
type mockDisk struct {
	mu sync.Mutex

	nextID util.PageID
	pages  map[util.PageID]*page.Page

	allocCalls   int
	deallocCalls map[util.PageID]int
	writeCalls   map[util.PageID]int
	readCalls    map[util.PageID]int
	lastWritten  map[util.PageID][]byte

	failRead  map[util.PageID]bool
	failWrite map[util.PageID]bool
}

func newMockDisk() *mockDisk {
	return &mockDisk{
		pages:        make(map[util.PageID]*page.Page),
		deallocCalls: make(map[util.PageID]int),
		writeCalls:   make(map[util.PageID]int),
		readCalls:    make(map[util.PageID]int),
		lastWritten:  make(map[util.PageID][]byte),
		failRead:     make(map[util.PageID]bool),
		failWrite:    make(map[util.PageID]bool),
	}
}

func (m *mockDisk) AllocatePage() (util.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.allocCalls++
	m.pages[id] = page.NewTestPage(id, nil)
	return id, nil
}

func (m *mockDisk) DeallocatePage(pageID util.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deallocCalls[pageID]++
	return nil
}

func (m *mockDisk) ReadPage(pageID util.PageID) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls[pageID]++
	if m.failRead[pageID] {
		return nil, errMockDiskFailure
	}
	p, ok := m.pages[pageID]
	if !ok {
		return nil, util.ErrPageNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockDisk) WritePage(p *page.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls[p.Header.PageID]++
	if m.failWrite[p.Header.PageID] {
		return errMockDiskFailure
	}
	cp := *p
	m.pages[p.Header.PageID] = &cp
	m.lastWritten[p.Header.PageID] = p.Serialize()
	return nil
}
