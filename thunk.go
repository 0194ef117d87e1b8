package skizo

// thunkStub is the Go stand-in for the small piece of machine code the
// original runtime JIT-stamps into an executable page: given an
// `_soX_env` pointer, it constructs the closure object (vtable + env) and
// returns it (spec.md §4.G). Since this runtime never emits real machine
// code, the "executable memory" is simulated by this bookkeeping record
// (Construct does the construction itself); the
// page-pool/free-list bookkeeping that would matter for a real W^X
// allocator is kept so the allocation/release shape matches spec.md
// exactly (see DESIGN.md).
type thunkStub struct {
	class *Class
	free  bool
}

// ThunkManager maintains the pool of per-closure-class construction
// stubs described in spec.md §4.G. Its ABI contract — "the stub is
// C-callable and pointer-sized-argument" — is honored here by Construct
// taking exactly one argument (the environment value) and returning
// exactly one value (the closure instance), matching a single-pointer-in/
// single-pointer-out native stub.
type ThunkManager struct {
	gc     *MemoryManager
	stubs  map[*Class]*thunkStub
	freed  []*thunkStub
	active map[*Object]*thunkStub
}

func NewThunkManager() *ThunkManager {
	return &ThunkManager{
		stubs:  make(map[*Class]*thunkStub),
		active: make(map[*Object]*thunkStub),
	}
}

// bind supplies the MemoryManager the thunk manager allocates closures
// through; split from NewThunkManager because the GC and the thunk
// manager are mutually referential at construction time (spec.md §4.F
// Sweeping calls back into the ThunkManager to release a closure's stub).
func (t *ThunkManager) bind(gc *MemoryManager) { t.gc = gc }

// stubFor returns (materializing if necessary) the constructor stub for
// closureClass. One stub per closure class is generated once, the first
// time that class's constructor is needed — the rest of the pool
// participates only in the free-list recycling of already-materialized
// stubs' backing pages.
func (t *ThunkManager) stubFor(closureClass *Class) *thunkStub {
	if s, ok := t.stubs[closureClass]; ok {
		return s
	}
	var s *thunkStub
	if len(t.freed) > 0 {
		s = t.freed[len(t.freed)-1]
		t.freed = t.freed[:len(t.freed)-1]
		s.class = closureClass
		s.free = false
	} else {
		s = &thunkStub{class: closureClass}
	}
	t.stubs[closureClass] = s
	return s
}

// Construct allocates and initializes a closure instance of closureClass
// with the given captured-environment object, exactly as the generated
// `create(_env: intptr)` constructor would (spec.md §4.E "Closure
// lowering"): vtable set to closureClass's, `_soX_env` set to env,
// `m_codeOffset` left at its zero value.
func (t *ThunkManager) Construct(closureClass *Class, env *Object) *Object {
	stub := t.stubFor(closureClass)
	obj := t.gc.AllocObject(closureClass)
	envIdx := fieldIndexByName(closureClass, "_soX_env")
	if envIdx >= 0 {
		obj.Fields[envIdx] = env
	}
	t.active[obj] = stub
	return obj
}

// Release returns a closure's stub memory to the free list; called by
// the GC when it finalizes an unreachable closure instance (spec.md
// §4.F Sweeping: "closures additionally release their thunk memory back
// to the ThunkManager").
func (t *ThunkManager) Release(obj *Object) {
	stub, ok := t.active[obj]
	if !ok {
		return
	}
	delete(t.active, obj)
	stub.free = true
	t.freed = append(t.freed, stub)
}

// fieldIndexByName looks up a field's flattened index by name, used for
// the three compiler-generated closure fields (`_soX_env`, `_soX_upper`,
// `_soX_self`) whose identity is established by naming convention rather
// than by a *Field pointer the caller already holds.
func fieldIndexByName(c *Class, name string) int {
	for i, f := range allInstanceFields(c) {
		if f.Name.String() == name {
			return i
		}
	}
	return -1
}

// FreeStubCount reports how many stubs are currently recycled and idle;
// used by tests asserting that closing over a closure and collecting it
// actually returns its stub to the pool (spec.md §8 S4).
func (t *ThunkManager) FreeStubCount() int { return len(t.freed) }
