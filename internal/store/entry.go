package store

// entry is a single value held by the Store.
//
// Generation is assigned by Put from a store-wide counter, so two writes to
// the same key never share a generation. Expiration records carry the
// generation they were registered for.
type entry struct {
	value      []byte
	generation uint64
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
