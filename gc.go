package skizo

import "time"

// GCStats is the optional per-collection report of spec.md §4.F "Stats".
type GCStats struct {
	BytesBefore  int
	BytesAfter   int
	LiveObjects  int
	FreedObjects int
	Millis       float64
}

// heapValue is implemented by every value MemoryManager tracks on the
// GC heap: *Object and *ArrayObject.
type heapValue interface {
	gcClass() *Class
	gcChildren() []Value
	gcMarked() bool
	gcSetMarked(bool)
	gcFinalized() bool
	gcSetFinalized(bool)
	gcSize() int
}

func (o *Object) gcClass() *Class   { return o.Class }
func (o *Object) gcMarked() bool    { return o.marked }
func (o *Object) gcSetMarked(v bool) { o.marked = v }
func (o *Object) gcFinalized() bool { return o.finalized }
func (o *Object) gcSetFinalized(v bool) { o.finalized = v }
func (o *Object) gcSize() int       { return o.Class.GCInfo.ContentSize }
func (o *Object) gcChildren() []Value {
	var kids []Value
	for _, off := range o.Class.GCInfo.GCMap {
		idx := gcMapOffsetToFieldIndex(o.Class, off)
		if idx >= 0 && idx < len(o.Fields) {
			kids = append(kids, o.Fields[idx])
		}
	}
	return kids
}

// gcMapOffsetToFieldIndex maps a GCMap byte offset back to a field index
// in this runtime's position-addressed Object.Fields (see object.go).
// Real emitted C code would instead dereference the offset directly into
// the struct; this indirection only exists because we model fields by
// position rather than by raw byte layout.
func gcMapOffsetToFieldIndex(c *Class, offset int) int {
	fields := allInstanceFields(c)
	for i, f := range fields {
		if f.Offset == offset {
			return i
		}
	}
	return -1
}

func (a *ArrayObject) gcClass() *Class    { return a.Class }
func (a *ArrayObject) gcMarked() bool     { return a.marked }
func (a *ArrayObject) gcSetMarked(v bool) { a.marked = v }
func (a *ArrayObject) gcFinalized() bool  { return a.finalized }
func (a *ArrayObject) gcSetFinalized(v bool) { a.finalized = v }
func (a *ArrayObject) gcSize() int        { return a.Class.GCInfo.ContentSize + len(a.Elems)*wordSize }
func (a *ArrayObject) gcChildren() []Value {
	elemHeap := a.Class.WrappedRef != nil && a.Class.WrappedRef.ResolvedClass() != nil &&
		a.Class.WrappedRef.ResolvedClass().IsHeapClass()
	if !elemHeap {
		return nil
	}
	return a.Elems
}

// Finalizer is invoked once, through virtual dispatch, for every object
// the GC determines is unreachable (spec.md §4.F Sweeping). The Domain
// wires this to its interpreter's destructor-call path.
type Finalizer func(v Value) error

// MemoryManager is the per-domain, stop-the-world, mark-sweep GC of
// spec.md §4.F. Allocation and collection are never concurrent with each
// other or with managed code (spec.md §5): a domain's single managed
// thread is the only caller.
type MemoryManager struct {
	threshold int
	allocated int // bytes allocated since the last collection

	objects []heapValue // allocation order, oldest first

	roots          []*Value
	permanentRoots []Value

	thunks    *ThunkManager
	finalize  Finalizer
	statsOn   bool
	lastStats GCStats
}

// NewMemoryManager creates a heap with the given collection threshold in
// bytes (spec.md §6 `maxgcmemory`).
func NewMemoryManager(threshold int, thunks *ThunkManager, finalize Finalizer) *MemoryManager {
	if threshold <= 0 {
		threshold = 16 * 1024 * 1024
	}
	return &MemoryManager{threshold: threshold, thunks: thunks, finalize: finalize}
}

// EnableStats turns per-collection reporting on or off (spec.md §6
// `gcstats`).
func (m *MemoryManager) EnableStats(v bool) { m.statsOn = v }

// LastStats returns the report from the most recent Collect/JudgementDay.
func (m *MemoryManager) LastStats() GCStats { return m.lastStats }

// AllocObject allocates a zero-initialized instance of c. A collection
// runs first if the threshold has been exceeded since the last one
// (spec.md §4.F Allocation).
func (m *MemoryManager) AllocObject(c *Class) *Object {
	m.maybeCollect(c.GCInfo.ContentSize)
	obj := newObject(c)
	m.track(obj, c.GCInfo.ContentSize)
	return obj
}

// AllocArray allocates an array of arrayClass (a synthesized Array
// class, see TypeSystem.arrayOf) with length elements, all nil.
func (m *MemoryManager) AllocArray(arrayClass *Class, length int) *ArrayObject {
	size := arrayClass.GCInfo.ContentSize + length*wordSize
	m.maybeCollect(size)
	arr := &ArrayObject{Class: arrayClass, Elems: make([]Value, length)}
	m.track(arr, size)
	return arr
}

func (m *MemoryManager) track(v heapValue, size int) {
	m.objects = append(m.objects, v)
	m.allocated += size
}

func (m *MemoryManager) maybeCollect(incoming int) {
	if m.allocated+incoming > m.threshold {
		m.Collect()
	}
}

// AddRoot registers slot as an explicit GC root (spec.md §4.F Roots:
// "Explicit root slots registered by compiler-generated prolog code").
func (m *MemoryManager) AddRoot(slot *Value) { m.roots = append(m.roots, slot) }

// RemoveRoot unregisters a previously added root slot.
func (m *MemoryManager) RemoveRoot(slot *Value) {
	for i, r := range m.roots {
		if r == slot {
			m.roots = append(m.roots[:i], m.roots[i+1:]...)
			return
		}
	}
}

// AddPermanentRoot pins v for the domain's lifetime: interned string
// literals and the intrinsic Map instances (spec.md §4.F Roots).
func (m *MemoryManager) AddPermanentRoot(v Value) { m.permanentRoots = append(m.permanentRoots, v) }

// Collect runs one ordinary mark-sweep pass: unreachable objects are
// finalized through virtual dispatch (spec.md §4.F Sweeping); closures
// additionally release their thunk memory.
func (m *MemoryManager) Collect() GCStats {
	start := time.Now()
	before := m.allocated

	for _, o := range m.objects {
		o.gcSetMarked(false)
	}
	for _, slot := range m.roots {
		m.mark(*slot)
	}
	for _, v := range m.permanentRoots {
		m.mark(v)
	}

	return m.sweep(before, start, false)
}

// JudgementDay runs the final collection at domain close: every root is
// dropped, so every remaining object is finalized, in reverse allocation
// order (spec.md §4.F "Judgement day").
func (m *MemoryManager) JudgementDay() GCStats {
	start := time.Now()
	before := m.allocated
	for _, o := range m.objects {
		o.gcSetMarked(false)
	}
	return m.sweep(before, start, true)
}

func (m *MemoryManager) mark(v Value) {
	hv, ok := v.(heapValue)
	if !ok || hv == nil {
		return
	}
	if hv.gcMarked() {
		return
	}
	hv.gcSetMarked(true)
	for _, child := range hv.gcChildren() {
		m.mark(child)
	}
}

func (m *MemoryManager) sweep(bytesBefore int, start time.Time, reverseOrder bool) GCStats {
	order := m.objects
	if reverseOrder {
		order = make([]heapValue, len(m.objects))
		for i, o := range m.objects {
			order[len(m.objects)-1-i] = o
		}
	}

	var survivors []heapValue
	survivorSet := make(map[heapValue]bool)
	freed := 0
	liveBytes := 0

	for _, o := range order {
		if !reverseOrder && o.gcMarked() {
			survivorSet[o] = true
			continue
		}
		if o.gcFinalized() {
			continue
		}
		o.gcSetFinalized(true)
		if m.finalize != nil {
			_ = m.finalize(o)
		}
		if m.thunks != nil {
			if obj, ok := o.(*Object); ok && obj.Class.Special == SpecialNone && obj.Class.Flags.Has(ClassCompilerGenerated) {
				m.thunks.Release(obj)
			}
		}
		freed++
	}

	if !reverseOrder {
		for _, o := range m.objects {
			if survivorSet[o] {
				survivors = append(survivors, o)
				liveBytes += o.gcSize()
			}
		}
		m.objects = survivors
		m.allocated = liveBytes
	} else {
		m.objects = nil
		m.allocated = 0
	}

	stats := GCStats{
		BytesBefore:  bytesBefore,
		BytesAfter:   m.allocated,
		LiveObjects:  len(m.objects),
		FreedObjects: freed,
		Millis:       float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if m.statsOn {
		m.lastStats = stats
	}
	return stats
}

// LiveObjectCount reports the number of objects currently tracked as
// live (for tests asserting reachability, spec.md §8 property 4).
func (m *MemoryManager) LiveObjectCount() int { return len(m.objects) }
