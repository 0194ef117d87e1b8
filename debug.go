package skizo

import "sort"

// Watch is one named local visible at a breakpoint, as the soft-debug
// front-end would list it (spec.md §6 `softdebug`).
type Watch struct {
	Name  string
	Value Value
}

// WatchIterator walks the locals of the innermost active frame in a
// stable, name-sorted order each time it's constructed, so a debugger
// front-end gets a deterministic listing.
type WatchIterator struct {
	watches []Watch
	pos     int
}

// Watches returns a WatchIterator over the current top frame's
// registered locals, or an empty iterator if nothing is executing or
// softdebug accounting was never enabled.
func (in *Interpreter) Watches() *WatchIterator {
	it := &WatchIterator{}
	if len(in.frames) == 0 {
		return it
	}
	top := in.frames[len(in.frames)-1]
	for name, v := range top.locals {
		it.watches = append(it.watches, Watch{Name: name, Value: v})
	}
	sort.Slice(it.watches, func(i, j int) bool { return it.watches[i].Name < it.watches[j].Name })
	return it
}

// HasNext reports whether Next would return another watch.
func (it *WatchIterator) HasNext() bool { return it.pos < len(it.watches) }

// Next returns the next watch in the iteration, advancing the cursor.
func (it *WatchIterator) Next() (Watch, bool) {
	if !it.HasNext() {
		return Watch{}, false
	}
	w := it.watches[it.pos]
	it.pos++
	return w, true
}

// recordLocal mirrors a live local into the current frame's watch set;
// called by InvokeMethod and assign when soft-debug accounting is active
// so Watches() has something to report without re-walking frame.locals
// (which belongs to the evaluator, not the frame record).
func (in *Interpreter) recordLocal(name string, v Value) {
	if len(in.frames) == 0 {
		return
	}
	in.frames[len(in.frames)-1].locals[name] = v
}
