package filededup

// Block is the terminal leaf of the partition tree: an ordered key prefix
// and the non-empty set of objects indistinguishable under it. Objects are
// kept in insertion order; keys only ever grow, one at a time, as the
// engine pushes the block to a deeper level.
type Block struct {
	keys    []Key
	objects []any
}

func newBlock(accumulated []Key, object any) *Block {
	keys := make([]Key, len(accumulated))
	copy(keys, accumulated)
	return &Block{
		keys:    keys,
		objects: []any{object},
	}
}

func (b *Block) appendKey(k Key) {
	b.keys = append(b.keys, k)
}

func (b *Block) appendObject(o any) {
	b.objects = append(b.objects, o)
}

// Keys returns the block's key prefix. Callers must not mutate the result.
func (b *Block) Keys() []Key {
	return b.keys
}

// Key returns the i-th key in the block's prefix.
func (b *Block) Key(i int) Key {
	return b.keys[i]
}

// NumKeys returns the length of the block's key prefix.
func (b *Block) NumKeys() int {
	return len(b.keys)
}

// Objects returns the block's objects in insertion order. Callers must not
// mutate the result, except through FileDeduplicator's sanctioned
// hardlink-resolution rewrite.
func (b *Block) Objects() []any {
	return b.objects
}

// Object returns the i-th object in the block.
func (b *Block) Object(i int) any {
	return b.objects[i]
}

// NumObjects returns the number of objects in the block.
func (b *Block) NumObjects() int {
	return len(b.objects)
}
