package util

// PageID identifies a page on disk. The zero value is a valid page id;
// InvalidPageID is the dedicated sentinel, distinct from any id a disk
// manager can allocate.
type PageID uint64

// InvalidPageID is the all-ones sentinel.
const InvalidPageID PageID = ^PageID(0)

// PageSize is the fixed size, in bytes, of every on-disk page.
const PageSize = 4096

// MaxMapSize bounds how large a file-backed disk manager's backing
// file is allowed to grow.
const MaxMapSize = 1 << 40

// Options configures a buffer pool and the extendible hash directory
// behind it. There is no file- or environment-based loader for this:
// the core takes these as constructor arguments only.
type Options struct {
	PoolSize   int // number of resident frames
	BucketSize int // slots per hash bucket before a split is attempted
}

// DefaultOptions returns sane defaults for a small embedded workload.
func DefaultOptions() Options {
	return Options{
		PoolSize:   1000,
		BucketSize: 4,
	}
}
