package edgebuf

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/simgraph/internal/mmap"
	"github.com/hupe1980/simgraph/resource"
)

const (
	// PairBytes is the on-disk size of one edge pair.
	PairBytes = 8

	// minPairs keeps the scratch file at least one page long.
	minPairs = 512
)

var (
	// ErrFinalized is returned when appending to a finalized buffer.
	ErrFinalized = errors.New("edgebuf: buffer is finalized")
	// ErrClosed is returned when using a closed buffer.
	ErrClosed = errors.New("edgebuf: buffer is closed")
)

// Pair is one directed candidate edge, stored little-endian on disk.
type Pair struct {
	Row int32
	Col int32
}

// AppendResult reports the effect of an Append. Grown is true when the
// backing file had to be reallocated to fit the batch.
type AppendResult struct {
	Grown    bool
	Capacity int // capacity in pairs after the append
}

// Stats counts buffer maintenance events.
type Stats struct {
	Grows        int64
	Flushes      int64
	FlushedBytes int64
}

// Options configures a Buffer.
type Options struct {
	// FlushEvery is the number of unflushed pairs that triggers a durability
	// flush of the mapping.
	FlushEvery int
	// Pattern names the scratch file, os.CreateTemp style.
	Pattern string
	// Controller rate-limits flush IO. Nil enforces nothing.
	Controller *resource.Controller
}

// DefaultOptions returns the default buffer options.
func DefaultOptions() Options {
	return Options{
		FlushEvery: 1 << 20, // 8 MiB of pairs
		Pattern:    "edges-*.buf",
	}
}

// Buffer is a disk-backed, append-only store of edge pairs.
type Buffer struct {
	mu        sync.Mutex
	m         *mmap.Mapping
	path      string
	capacity  int // pairs
	size      int // pairs
	unflushed int
	opts      Options
	stats     Stats
	finalized bool
	closed    bool
}

// Create allocates a scratch file in dir sized for initialPairs pairs and
// maps it read-write. The file is removed by Close on every path.
func Create(dir string, initialPairs int, optFns ...func(o *Options)) (*Buffer, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultOptions().FlushEvery
	}

	if initialPairs < minPairs {
		initialPairs = minPairs
	}

	f, err := os.CreateTemp(dir, opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("edgebuf: create scratch file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("edgebuf: create scratch file: %w", err)
	}

	m, err := mmap.Create(path, initialPairs*PairBytes)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("edgebuf: map scratch file: %w", err)
	}

	return &Buffer{
		m:        m,
		path:     path,
		capacity: initialPairs,
		opts:     opts,
	}, nil
}

// Append stores pairs at the end of the buffer, growing the backing file if
// the batch does not fit. It reports whether a reallocation happened and the
// capacity in effect afterwards.
func (b *Buffer) Append(pairs []Pair) (AppendResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return AppendResult{}, ErrClosed
	}
	if b.finalized {
		return AppendResult{}, ErrFinalized
	}

	var res AppendResult

	need := b.size + len(pairs)
	if need > b.capacity {
		newCap := b.capacity
		for newCap < need {
			newCap *= 2
		}
		if err := b.m.Grow(newCap * PairBytes); err != nil {
			return AppendResult{}, fmt.Errorf("edgebuf: grow to %d pairs: %w", newCap, err)
		}
		b.capacity = newCap
		b.stats.Grows++
		res.Grown = true
	}

	data := b.m.Bytes()
	for i, p := range pairs {
		putPair(data[(b.size+i)*PairBytes:], p)
	}
	b.size = need
	b.unflushed += len(pairs)

	if b.unflushed >= b.opts.FlushEvery {
		if err := b.flushLocked(); err != nil {
			return AppendResult{}, err
		}
	}

	res.Capacity = b.capacity
	return res, nil
}

// Flush forces dirty pages to disk.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return b.flushLocked()
}

func (b *Buffer) flushLocked() error {
	if b.unflushed == 0 {
		return nil
	}

	n := b.unflushed * PairBytes
	// Flush throughput counts against the build's IO budget.
	if err := b.opts.Controller.AcquireIO(context.Background(), n); err != nil {
		return fmt.Errorf("edgebuf: flush: %w", err)
	}
	if err := b.m.Sync(); err != nil {
		return fmt.Errorf("edgebuf: flush: %w", err)
	}

	b.unflushed = 0
	b.stats.Flushes++
	b.stats.FlushedBytes += int64(n)
	return nil
}

// Path returns the location of the scratch file.
func (b *Buffer) Path() string {
	return b.path
}

// Len returns the number of stored pairs.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the current capacity in pairs.
func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Stats returns a snapshot of maintenance counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Finalize flushes outstanding writes and freezes the buffer. The returned
// View covers exactly the written prefix and stays valid until Close.
func (b *Buffer) Finalize() (*View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if err := b.flushLocked(); err != nil {
		return nil, err
	}
	b.finalized = true

	region, err := b.m.Region(0, b.size*PairBytes)
	if err != nil {
		return nil, fmt.Errorf("edgebuf: finalize: %w", err)
	}
	return &View{region: region, n: b.size}, nil
}

// Close unmaps the buffer and removes the scratch file. It is idempotent;
// the file is removed even when unmapping fails.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := b.m.Close()
	if rerr := os.Remove(b.path); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// View is a read-only window over a finalized buffer.
type View struct {
	region *mmap.Region
	n      int
}

// Len returns the number of pairs in the view.
func (v *View) Len() int { return v.n }

// Pair returns pair i.
func (v *View) Pair(i int) Pair {
	return getPair(v.region.Bytes()[i*PairBytes:])
}

// Pairs decodes pairs [lo, hi) into dst, which is grown as needed, and
// returns the filled slice.
func (v *View) Pairs(lo, hi int, dst []Pair) []Pair {
	n := hi - lo
	if cap(dst) < n {
		dst = make([]Pair, n)
	}
	dst = dst[:n]

	data := v.region.Bytes()[lo*PairBytes : hi*PairBytes]
	for i := range dst {
		dst[i] = getPair(data[i*PairBytes:])
	}
	return dst
}

func putPair(b []byte, p Pair) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(p.Row))
	binary.LittleEndian.PutUint32(b[4:8], uint32(p.Col))
}

func getPair(b []byte) Pair {
	return Pair{
		Row: int32(binary.LittleEndian.Uint32(b[0:4])),
		Col: int32(binary.LittleEndian.Uint32(b[4:8])),
	}
}
