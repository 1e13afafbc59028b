package buffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/arrdb/pagecache/internal/utils"
)

func seedPages(d *mockDisk, n int) {
	for i := 0; i < n; i++ {
		d.AllocatePage()
	}
}

// With a pool of 3 frames all pinned, fetching a 4th distinct page
// fails with ErrExhausted.
func TestPool_FetchExhaustsPool(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 4)
	p := NewPool(3, 2, d, nil)

	for id := util.PageID(0); id < 3; id++ {
		_, err := p.Fetch(id)
		require.NoError(t, err)
	}

	_, err := p.Fetch(util.PageID(3))
	assert.ErrorIs(t, err, ErrExhausted)
}

// Fetching a page, unpinning it dirty, then filling the pool with
// other pages forces its eviction with a write-back; a later fetch
// reloads it from disk with the written data intact.
func TestPool_UnpinDirtyEvictsAndWritesBack(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 4)
	p := NewPool(3, 2, d, nil)

	page1, err := p.Fetch(0)
	require.NoError(t, err)
	page1.Data[0] = 0xAB

	require.NoError(t, p.Unpin(0, true))

	for id := util.PageID(1); id < 4; id++ {
		_, err := p.Fetch(id)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, d.writeCalls[0], "dirty victim must be flushed exactly once on eviction")

	require.NoError(t, p.Unpin(1, false))
	reloaded, err := p.Fetch(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), reloaded.Data[0], "evicted dirty data must survive the write-back/reload round trip")
}

// Four successive NewPage calls against a pool of size 3, all left
// pinned: the fourth fails.
func TestPool_NewPageExhaustion(t *testing.T) {
	d := newMockDisk()
	p := NewPool(3, 2, d, nil)

	for i := 0; i < 3; i++ {
		_, _, err := p.NewPage()
		require.NoError(t, err)
	}

	_, _, err := p.NewPage()
	assert.ErrorIs(t, err, ErrExhausted)
}

// Fetch 5, unpin 5, delete 5: the delete succeeds, the page is no
// longer resident, the frame is reusable, and DeallocatePage(5) is
// called exactly once.
func TestPool_DeleteFreesFrameAndDeallocates(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 6)
	p := NewPool(3, 2, d, nil)

	_, err := p.Fetch(5)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(5, false))

	require.NoError(t, p.Delete(5))
	assert.Equal(t, 1, d.deallocCalls[5])

	_, err = p.Fetch(5)
	require.NoError(t, err, "re-fetch after delete should be a clean miss, not an error")
	assert.Equal(t, 1, d.deallocCalls[5], "delete must not re-trigger deallocation on a later unrelated fetch")
}

func TestPool_DeletePinnedFails(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 1)
	p := NewPool(3, 2, d, nil)

	_, err := p.Fetch(0)
	require.NoError(t, err)

	err = p.Delete(0)
	assert.ErrorIs(t, err, ErrFramePinned)
}

func TestPool_DeleteAbsentFails(t *testing.T) {
	d := newMockDisk()
	p := NewPool(2, 2, d, nil)
	assert.ErrorIs(t, p.Delete(42), util.ErrPageNotFound)
}

func TestPool_UnpinOverUnpinFails(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 1)
	p := NewPool(2, 2, d, nil)

	_, err := p.Fetch(0)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(0, false))

	err = p.Unpin(0, false)
	assert.ErrorIs(t, err, ErrNotPinned)
}

func TestPool_FetchHitDoesNotTouchDisk(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 1)
	p := NewPool(2, 2, d, nil)

	_, err := p.Fetch(0)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(0, false))

	_, err = p.Fetch(0)
	require.NoError(t, err)

	assert.Equal(t, 1, d.readCalls[0], "a hit must not re-read from disk")
}

func TestPool_NoLostWriteOnEvictionFailure(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 3)
	d.failWrite[0] = true
	p := NewPool(1, 2, d, nil)

	page0, err := p.Fetch(0)
	require.NoError(t, err)
	page0.Data[0] = 1
	require.NoError(t, p.Unpin(0, true))

	_, err = p.Fetch(1)
	require.True(t, errors.Is(err, errMockDiskFailure))

	d.failWrite[0] = false
	require.NoError(t, p.Flush(0))
	assert.Equal(t, 2, d.writeCalls[0])
}

func TestPool_FlushAllOnlyTouchesDirtyFrames(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 2)
	p := NewPool(2, 2, d, nil)

	_, err := p.Fetch(0)
	require.NoError(t, err)
	_, err = p.Fetch(1)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(0, true))
	require.NoError(t, p.Unpin(1, false))

	require.NoError(t, p.FlushAll())
	assert.Equal(t, 1, d.writeCalls[0])
	assert.Equal(t, 0, d.writeCalls[1])
}

// Two successive flushes with no intervening write land byte-identical
// contents on disk, and the first one clears the dirty flag.
func TestPool_FlushTwiceWritesIdenticalBytes(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 1)
	p := NewPool(2, 2, d, nil)

	page0, err := p.Fetch(0)
	require.NoError(t, err)
	page0.Data[0] = 0x5A
	require.NoError(t, p.Unpin(0, true))

	require.NoError(t, p.Flush(0))
	first := d.lastWritten[0]
	require.NoError(t, p.Flush(0))

	assert.Equal(t, first, d.lastWritten[0])
	assert.Equal(t, 2, d.writeCalls[0])
}

func TestPool_StatsReflectOccupancy(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 2)
	p := NewPool(3, 2, d, nil)

	_, err := p.Fetch(0)
	require.NoError(t, err)
	_, err = p.Fetch(1)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(1, false))

	s := p.Stats()
	assert.Equal(t, 1, s.Free)
	assert.Equal(t, 1, s.Pinned)
	assert.Equal(t, 1, s.Evicted)
	assert.Equal(t, 2, s.Misses)
}

type recordingLog struct {
	calls []uint64
}

func (r *recordingLog) FlushLogUpTo(lsn uint64) error {
	r.calls = append(r.calls, lsn)
	return nil
}

// The log manager is consulted before a dirty page is written back on
// eviction, with that page's LSN.
func TestPool_WALConsultedBeforeDirtyWriteBack(t *testing.T) {
	d := newMockDisk()
	seedPages(d, 2)
	lm := &recordingLog{}
	p := NewPool(1, 2, d, lm)

	page0, err := p.Fetch(0)
	require.NoError(t, err)
	page0.Header.LSN = 7
	require.NoError(t, p.Unpin(0, true))

	_, err = p.Fetch(1) // evicts page 0, which is dirty
	require.NoError(t, err)

	require.Equal(t, []uint64{7}, lm.calls)
	assert.Equal(t, 1, d.writeCalls[0])
}

func TestNewPool_InvalidArgsPanic(t *testing.T) {
	d := newMockDisk()
	assert.Panics(t, func() { NewPool(0, 2, d, nil) })
	assert.Panics(t, func() { NewPool(2, 0, d, nil) })
	assert.Panics(t, func() { NewPool(2, 2, nil, nil) })
}
