package skizo

import "fmt"

// AllocationType tags a BumpAllocator.Allocate call for diagnostics only;
// it never affects layout. Mirrors ESkizoAllocationType of the original
// runtime.
type AllocationType int

const (
	AllocExpression AllocationType = iota
	AllocClass
	AllocMember
	AllocToken
	allocTypeCount
)

const bumpPageSize = 64 * 1024

const wordSize = 8

// bumpPage is one fixed-size chunk of the arena. Allocations never cross
// a page boundary; a request that doesn't fit in what's left of the
// current page starts a fresh page.
type bumpPage struct {
	data   []byte
	cursor int
}

func newBumpPage() *bumpPage {
	return &bumpPage{data: make([]byte, bumpPageSize)}
}

func (p *bumpPage) tryAllocate(size int) ([]byte, bool) {
	aligned := alignUp(p.cursor, wordSize)
	if aligned+size > len(p.data) {
		return nil, false
	}
	block := p.data[aligned : aligned+size : aligned+size]
	p.cursor = aligned + size
	return block, true
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// BumpAllocator is a page-based arena for domain metadata (classes,
// methods, tokens, expressions): allocation rounds up to word alignment,
// falls through to a new page when the current one can't fit the
// request, and never frees an individual allocation. Destruction (Free)
// releases every page at once, matching the domain's single wholesale
// teardown (spec.md §3 Lifecycles).
type BumpAllocator struct {
	pages             []*bumpPage
	profilingEnabled  bool
	byAllocationType  [allocTypeCount]int
	pageSize          int
}

// NewBumpAllocator creates an arena using the default page size. Tests
// that want to exercise page-rollover without allocating megabytes pass a
// smaller size via NewBumpAllocatorSized.
func NewBumpAllocator() *BumpAllocator {
	return NewBumpAllocatorSized(bumpPageSize)
}

func NewBumpAllocatorSized(pageSize int) *BumpAllocator {
	if pageSize <= 0 {
		pageSize = bumpPageSize
	}
	return &BumpAllocator{pageSize: pageSize}
}

// EnableProfiling turns on (or off) the per-allocation-type byte
// counters. Disabled by default, matching the original allocator.
func (a *BumpAllocator) EnableProfiling(v bool) { a.profilingEnabled = v }

// MemoryByAllocationType reports bytes allocated under allocType so far.
// Only meaningful when profiling is enabled.
func (a *BumpAllocator) MemoryByAllocationType(allocType AllocationType) int {
	return a.byAllocationType[allocType]
}

// Allocate returns a zeroed byte slice of size sz, word-aligned within
// its page; a size of 0 is treated as one word. allocType is bookkeeping
// only. A request larger than the arena's page size gets a page of its
// own. Panics with OutOfMemory wrapped in an AbortError for a negative
// size.
func (a *BumpAllocator) Allocate(sz int, allocType AllocationType) []byte {
	if sz < 0 {
		panic(newAbort(OutOfMemory, "negative allocation size %d", sz))
	}
	if sz == 0 {
		sz = wordSize
	}
	pageSize := a.pageSize
	if sz > pageSize-wordSize {
		pageSize = alignUp(sz, wordSize) + wordSize
	}
	if len(a.pages) == 0 {
		a.addPage(pageSize)
	}
	last := a.pages[len(a.pages)-1]
	block, ok := last.tryAllocate(sz)
	if !ok {
		a.addPage(pageSize)
		last = a.pages[len(a.pages)-1]
		block, ok = last.tryAllocate(sz)
		if !ok {
			panic(newAbort(OutOfMemory, "bump allocator could not satisfy %d-byte request", sz))
		}
	}
	if a.profilingEnabled {
		a.byAllocationType[allocType] += sz
	}
	return block
}

func (a *BumpAllocator) addPage(size int) {
	p := &bumpPage{data: make([]byte, size)}
	a.pages = append(a.pages, p)
}

// Free releases every page. After Free, the allocator must not be used
// again; callers (the domain) only ever call it once, on teardown.
func (a *BumpAllocator) Free() {
	a.pages = nil
}

// PageCount reports how many pages have been allocated; used by tests to
// assert roll-over behavior.
func (a *BumpAllocator) PageCount() int { return len(a.pages) }

func (a *BumpAllocator) String() string {
	return fmt.Sprintf("BumpAllocator{pages=%d}", len(a.pages))
}
