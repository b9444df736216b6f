package symtab

// resolver is the in-process lookup cache seam. The cached and uncached
// variants are picked once at open time so the put hot path carries no
// per-call nil check.
//
// The cache is a pure accelerator: it never answers for a symbol it does
// not hold, and clearing it at any time is safe.
type resolver interface {
	resolve(symbol string) (Key, bool)
	remember(symbol string, key Key)
	invalidate()
}

// mapResolver caches symbol -> key in process memory.
type mapResolver struct {
	m map[string]Key
}

func newMapResolver(capacity int32) *mapResolver {
	return &mapResolver{m: make(map[string]Key, capacity)}
}

func (r *mapResolver) resolve(symbol string) (Key, bool) {
	k, ok := r.m[symbol]

	return k, ok
}

func (r *mapResolver) remember(symbol string, key Key) {
	r.m[symbol] = key
}

func (r *mapResolver) invalidate() {
	clear(r.m)
}

// nopResolver is the no-cache variant: every lookup misses.
type nopResolver struct{}

func (nopResolver) resolve(string) (Key, bool) { return 0, false }
func (nopResolver) remember(string, Key)       {}
func (nopResolver) invalidate()                {}
