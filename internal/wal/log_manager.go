// Package wal declares the optional log-manager collaborator of the
// buffer pool: a hook called before a dirty page is written back, so
// write-ahead logging can guarantee a page's log records are durable
// before its data hits disk. The record format is left to callers;
// this package provides the interface plus one minimal append-only
// segment implementation.
package wal

import (
	"fmt"
	"os"
	"sync"
)

// LogManager is consulted by the buffer pool, if present, immediately
// before writing a dirty page back. FlushLogUpTo must durably persist
// every log record up to and including lsn before returning.
type LogManager interface {
	FlushLogUpTo(lsn uint64) error
}

// NoOp is the LogManager used when the pool has no log manager
// configured.
type NoOp struct{}

func (NoOp) FlushLogUpTo(uint64) error { return nil }

// FileLogManager is a minimal append-only WAL segment: every record
// is just its LSN. Append writes to the OS buffer; FlushLogUpTo syncs
// the segment to disk.
type FileLogManager struct {
	mu      sync.Mutex
	file    *os.File
	flushed uint64
}

// OpenFileLogManager opens (creating if necessary) an append-only
// segment file at path.
func OpenFileLogManager(path string) (*FileLogManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal segment: %w", err)
	}
	return &FileLogManager{file: f}, nil
}

// Append writes a log record for lsn to the segment's OS buffer. Not
// durable until FlushLogUpTo syncs it.
func (m *FileLogManager) Append(lsn uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rec [8]byte
	for i := range rec {
		rec[i] = byte(lsn >> (8 * i))
	}
	if _, err := m.file.Write(rec[:]); err != nil {
		return fmt.Errorf("append wal record %d: %w", lsn, err)
	}
	return nil
}

// FlushLogUpTo syncs the segment to disk if lsn is newer than the
// last flushed record.
func (m *FileLogManager) FlushLogUpTo(lsn uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lsn <= m.flushed {
		return nil
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("sync wal segment: %w", err)
	}
	m.flushed = lsn
	return nil
}

// Close syncs and closes the underlying segment file.
func (m *FileLogManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	syncErr := m.file.Sync()
	closeErr := m.file.Close()
	m.file = nil
	if syncErr != nil {
		return fmt.Errorf("sync wal segment: %w", syncErr)
	}
	return closeErr
}
