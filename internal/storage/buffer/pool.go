// Package buffer implements the buffer pool manager: it orchestrates
// the frame array, free list, extendible hash directory, and LRU
// replacer behind a single latch, fetching pages from disk on demand
// and writing them back on eviction.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/arrdb/pagecache/internal/storage/disk"
	"github.com/arrdb/pagecache/internal/storage/hash"
	"github.com/arrdb/pagecache/internal/storage/page"
	"github.com/arrdb/pagecache/internal/storage/replacer"
	util "github.com/arrdb/pagecache/internal/utils"
	"github.com/arrdb/pagecache/internal/wal"
)

var logger = logrus.New()

// ErrExhausted is returned by Fetch and NewPage when both the free
// list and the replacer are empty: every frame is pinned, so nothing
// can be evicted.
var ErrExhausted = errors.New("buffer pool exhausted: no free or evictable frame")

// ErrNotPinned is returned by Unpin when called on a frame whose pin
// count is already zero.
var ErrNotPinned = errors.New("page is not pinned")

// ErrFramePinned is returned by Delete when the target frame's pin
// count is nonzero.
var ErrFramePinned = errors.New("page is pinned")

// Pool is the buffer pool manager. All public methods except Size
// (which reads only the fixed frame count) acquire latch and are
// therefore linearizable with respect to one another. The
// directory and replacer carry their own internal mutexes so they
// remain safe standalone; invoked under latch, those inner locks are
// always uncontended. Lock order is strictly pool then directory and
// pool then replacer, never the reverse.
type Pool struct {
	latch sync.Mutex

	frames   []*frame
	freeList []int // stack of free frame indices

	directory *hash.Directory[util.PageID, int]
	repl      *replacer.LRU[int]

	disk disk.Manager
	log  wal.LogManager

	stats Stats
}

// NewPool builds a pool of poolSize frames backed by dm, with an
// extendible hash directory of bucket capacity bucketSize. logManager
// may be nil, in which case no WAL hook is consulted.
func NewPool(poolSize, bucketSize int, dm disk.Manager, logManager wal.LogManager) *Pool {
	if poolSize <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	if bucketSize < 1 {
		panic(util.ErrInvalidBucketSize)
	}
	if dm == nil {
		panic(util.ErrDiskManagerNil)
	}
	if logManager == nil {
		logManager = wal.NoOp{}
	}

	frames := make([]*frame, poolSize)
	freeList := make([]int, poolSize)
	for i := range frames {
		frames[i] = newFrame()
		freeList[i] = poolSize - 1 - i // so popping from the tail hands out frame 0 first
	}

	p := &Pool{
		frames:    frames,
		freeList:  freeList,
		directory: hash.New[util.PageID, int](bucketSize, hash.PageIDHash),
		repl:      replacer.New[int](poolSize),
		disk:      dm,
		log:       logManager,
	}

	logger.WithFields(logrus.Fields{
		"frames":   poolSize,
		"capacity": humanize.Bytes(uint64(poolSize) * util.PageSize),
	}).Info("buffer pool ready")

	return p
}

// Fetch returns the page for pageID, pinning it. A directory hit
// requires no I/O; a miss selects a victim frame, evicting and
// reloading as needed. Returns ErrExhausted when both the free list
// and the replacer are empty.
func (p *Pool) Fetch(pageID util.PageID) (*page.Page, error) {
	p.latch.Lock()
	defer p.latch.Unlock()

	if idx, ok := p.directory.Find(pageID); ok {
		f := p.frames[idx]
		f.pinCount++
		f.page.Header.SetPinnedFlag()
		p.repl.Erase(idx) // idempotent: no-op if not currently a candidate
		p.stats.Hits++
		logger.WithFields(logrus.Fields{"page_id": pageID, "frame": idx}).Debug("fetch hit")
		return f.page, nil
	}

	idx, ok, err := p.selectVictimFrame()
	if err != nil {
		return nil, err
	}
	if !ok {
		p.stats.Misses++
		logger.Warn("fetch: pool exhausted")
		return nil, ErrExhausted
	}

	f := p.frames[idx]
	f.bind(pageID)
	p.directory.Insert(pageID, idx)

	loaded, err := p.disk.ReadPage(pageID)
	if err != nil {
		// Roll back: a frame must never claim a page_id it failed to
		// load, or it would be counted as resident while holding
		// garbage.
		p.directory.Remove(pageID)
		f.reset()
		p.freeList = append(p.freeList, idx)
		return nil, fmt.Errorf("fetch page %d: %w", pageID, err)
	}
	loaded.Header.SetPinnedFlag()
	f.page = loaded
	p.stats.Misses++
	logger.WithFields(logrus.Fields{"page_id": pageID, "frame": idx}).Debug("fetch miss: loaded from disk")
	return f.page, nil
}

// Unpin decrements pageID's pin count, returning it to the replacer
// once it reaches zero. isDirty, if true, marks the page dirty; it
// never clears an existing dirty flag.
func (p *Pool) Unpin(pageID util.PageID, isDirty bool) error {
	p.latch.Lock()
	defer p.latch.Unlock()

	idx, ok := p.directory.Find(pageID)
	if !ok {
		return fmt.Errorf("unpin page %d: %w", pageID, util.ErrPageNotFound)
	}
	f := p.frames[idx]
	if f.pinCount <= 0 {
		return fmt.Errorf("unpin page %d: %w", pageID, ErrNotPinned)
	}

	f.pinCount--
	if f.pinCount == 0 {
		f.page.Header.ClearPinnedFlag()
		p.repl.Insert(idx)
	}
	if isDirty {
		f.dirty = true
		f.page.Header.SetDirtyFlag()
	}
	return nil
}

// Flush writes pageID's resident frame to disk if present, regardless
// of pin count, clearing its dirty flag on success.
func (p *Pool) Flush(pageID util.PageID) error {
	p.latch.Lock()
	defer p.latch.Unlock()
	return p.flushLocked(pageID)
}

func (p *Pool) flushLocked(pageID util.PageID) error {
	if pageID == util.InvalidPageID {
		return fmt.Errorf("flush: %w", util.ErrPageNotFound)
	}
	idx, ok := p.directory.Find(pageID)
	if !ok {
		return fmt.Errorf("flush page %d: %w", pageID, util.ErrPageNotFound)
	}

	f := p.frames[idx]
	if err := p.log.FlushLogUpTo(f.page.Header.LSN); err != nil {
		return fmt.Errorf("flush page %d: wal: %w", pageID, err)
	}
	// Clear the header flag before serializing so the on-disk copy is
	// never marked dirty and repeated flushes write identical bytes.
	wasDirty := f.page.Header.IsDirty()
	f.page.Header.ClearDirtyFlag()
	if err := p.disk.WritePage(f.page); err != nil {
		// No lost write: dirty stays true, frame still occupies the slot.
		if wasDirty {
			f.page.Header.SetDirtyFlag()
		}
		return fmt.Errorf("flush page %d: %w", pageID, err)
	}

	f.dirty = false
	logger.WithFields(logrus.Fields{"page_id": pageID, "frame": idx}).Debug("flush")
	return nil
}

// FlushAll flushes every currently dirty resident frame, pinned or
// not. Intended for clean shutdown.
func (p *Pool) FlushAll() error {
	p.latch.Lock()
	defer p.latch.Unlock()

	var errs error
	for _, f := range p.frames {
		if f.page.Header.PageID == util.InvalidPageID || !f.dirty {
			continue
		}
		if err := p.flushLocked(f.page.Header.PageID); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// NewPage allocates a fresh page on disk and pins it in a frame,
// returning ErrExhausted if no frame is available.
func (p *Pool) NewPage() (*page.Page, util.PageID, error) {
	p.latch.Lock()
	defer p.latch.Unlock()

	idx, ok, err := p.selectVictimFrame()
	if err != nil {
		return nil, util.InvalidPageID, err
	}
	if !ok {
		logger.Warn("new_page: pool exhausted")
		return nil, util.InvalidPageID, ErrExhausted
	}

	pageID, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, idx)
		return nil, util.InvalidPageID, fmt.Errorf("new_page: %w", err)
	}

	f := p.frames[idx]
	f.bind(pageID)
	f.page.Header.SetPinnedFlag()
	p.directory.Insert(pageID, idx)

	logger.WithFields(logrus.Fields{"page_id": pageID, "frame": idx}).Debug("new_page")
	return f.page, pageID, nil
}

// Delete evicts pageID from the pool, returning the frame to the free
// list and deallocating the id on disk. Fails if the page is not
// resident or still pinned.
func (p *Pool) Delete(pageID util.PageID) error {
	p.latch.Lock()
	defer p.latch.Unlock()

	idx, ok := p.directory.Find(pageID)
	if !ok {
		return fmt.Errorf("delete page %d: %w", pageID, util.ErrPageNotFound)
	}
	f := p.frames[idx]
	if f.pinCount != 0 {
		return fmt.Errorf("delete page %d: %w", pageID, ErrFramePinned)
	}

	p.directory.Remove(pageID)
	p.repl.Erase(idx)
	f.reset()
	p.freeList = append(p.freeList, idx)

	if err := p.disk.DeallocatePage(pageID); err != nil {
		return fmt.Errorf("delete page %d: %w", pageID, err)
	}

	logger.WithFields(logrus.Fields{"page_id": pageID, "frame": idx}).Debug("delete")
	return nil
}

// selectVictimFrame prefers the free list over the replacer so fresh
// frames are consumed before anything is evicted; a dirty victim is
// written back before reuse and dropped from the directory. Returns
// ok=false when both are empty.
func (p *Pool) selectVictimFrame() (int, bool, error) {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, true, nil
	}

	idx, ok := p.repl.Victim()
	if !ok {
		return 0, false, nil
	}

	f := p.frames[idx]
	if f.dirty {
		if err := p.log.FlushLogUpTo(f.page.Header.LSN); err != nil {
			p.repl.Insert(idx)
			return 0, false, fmt.Errorf("evict frame %d: wal: %w", idx, err)
		}
		f.page.Header.ClearDirtyFlag()
		if err := p.disk.WritePage(f.page); err != nil {
			// No lost write: put the candidate back, frame stays dirty.
			f.page.Header.SetDirtyFlag()
			p.repl.Insert(idx)
			return 0, false, fmt.Errorf("evict frame %d (page %d): %w", idx, f.page.Header.PageID, err)
		}
		f.dirty = false
	}

	p.directory.Remove(f.page.Header.PageID)
	return idx, true, nil
}

// Stats reports buffer pool occupancy and hit/miss counters.
type Stats struct {
	Free    int
	Pinned  int
	Evicted int // unpinned resident, i.e. candidates in the replacer
	Hits    int
	Misses  int
}

// Stats returns a snapshot of the pool's current occupancy and
// hit/miss counters.
func (p *Pool) Stats() Stats {
	p.latch.Lock()
	defer p.latch.Unlock()

	s := p.stats
	s.Free = len(p.freeList)
	s.Evicted = p.repl.Size()
	for _, f := range p.frames {
		if f.page.Header.PageID != util.InvalidPageID && f.pinCount > 0 {
			s.Pinned++
		}
	}
	return s
}

// Size returns the pool's fixed frame count.
func (p *Pool) Size() int { return len(p.frames) }
