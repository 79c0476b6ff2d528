package filededup

import "fmt"

// EngineConfig configures a new Engine. Blocking is the flat/factory list
// described by BlockingFn/BlockingFactory; an empty list is valid and
// collapses every object into a single Block.
type EngineConfig struct {
	Blocking []any
}

// Engine owns the partition tree's root slot, the flattened digest chain
// resolved once at construction, and the append-only global list of every
// Block ever created. It ingests objects single-threaded; see Add.
type Engine struct {
	fns    []BlockingFn
	root   *slot
	blocks []*Block
}

// NewEngine expands config.Blocking into a flat digest chain and returns a
// ready-to-use Engine. It fails with a *ConfigError if expansion fails.
func NewEngine(config EngineConfig) (*Engine, error) {
	fns, err := ExpandBlocking(config.Blocking)
	if err != nil {
		return nil, err
	}
	return &Engine{
		fns:  fns,
		root: &slot{kind: slotEmpty},
	}, nil
}

// Add ingests a single object, descending the partition tree and creating
// or growing Blocks and KeyStores as needed. Each configured digest is
// computed for a given object at most once, and only when a second object
// forces a distinction at that level.
func (e *Engine) Add(object any) error {
	return e.add(e.root, 0, nil, object)
}

func (e *Engine) add(s *slot, level int, accumulated []Key, object any) error {
	n := len(e.fns)

	if level == n {
		switch s.kind {
		case slotEmpty:
			b := newBlock(accumulated, object)
			s.kind = slotBlock
			s.block = b
			e.blocks = append(e.blocks, b)
			return nil
		case slotBlock:
			s.block.appendObject(object)
			return nil
		default:
			return fmt.Errorf("filededup: invariant violation, keystore found at terminal level %d", level)
		}
	}

	switch s.kind {
	case slotEmpty:
		b := newBlock(accumulated, object)
		s.kind = slotBlock
		s.block = b
		e.blocks = append(e.blocks, b)
		return nil

	case slotBlock:
		existing := s.block.objects[0]
		key, err := e.fns[level].Digest(existing)
		if err != nil {
			return fmt.Errorf("filededup: computing %s for existing object: %w", e.fns[level].ID, err)
		}
		s.block.appendKey(key)

		store := newKeyStore()
		store.set(key, &slot{kind: slotBlock, block: s.block})
		s.kind = slotStore
		s.block = nil
		s.store = store

		return e.descend(s, level, accumulated, object)

	case slotStore:
		return e.descend(s, level, accumulated, object)
	}

	return nil
}

// descend computes the level-L key for the new object and recurses into
// the KeyStore's child slot at that key.
func (e *Engine) descend(s *slot, level int, accumulated []Key, object any) error {
	key, err := e.fns[level].Digest(object)
	if err != nil {
		return fmt.Errorf("filededup: computing %s: %w", e.fns[level].ID, err)
	}

	child := s.store.getOrCreate(key)

	next := make([]Key, len(accumulated)+1)
	copy(next, accumulated)
	next[len(accumulated)] = key

	return e.add(child, level+1, next, object)
}

// Blocks returns the append-ordered list of every Block created so far.
// Callers must not mutate the result.
func (e *Engine) Blocks() []*Block {
	return e.blocks
}

// Blocking returns the resolved flat digest chain, with metadata.
func (e *Engine) Blocking() []BlockingFn {
	return e.fns
}

// CountKeysComputed returns, per level, the number of times that level's
// BlockingFn was invoked. The result is non-increasing; trailing zeros are
// omitted.
func (e *Engine) CountKeysComputed() []int {
	n := len(e.fns)
	counts := make([]int, n)
	for _, b := range e.blocks {
		limit := len(b.keys)
		if limit > n {
			limit = n
		}
		for l := 0; l < limit; l++ {
			counts[l] += len(b.objects)
		}
	}
	return trimTrailingZeros(counts)
}

// CountCollisions returns, per level, the number of (distinct, terminal
// Block) pairs reachable through a single key at that level beyond the
// first. The vector's length is exactly the deepest KeyStore level
// reached; its last entry is a real, computed 0 when every KeyStore at
// that depth happens to hold only one reachable Block per key, not a
// padding artifact, so it is never trimmed.
func (e *Engine) CountCollisions() []int {
	_, vec := collisionsFor(e.root)
	if vec == nil {
		return []int{}
	}
	return vec
}

// collisionsFor performs a single post-order traversal, returning the
// number of terminal Blocks reachable from s and the per-level collision
// vector for the subtree rooted at s's own level.
func collisionsFor(s *slot) (reachable int, vec []int) {
	switch s.kind {
	case slotEmpty:
		return 0, nil
	case slotBlock:
		return 1, nil
	case slotStore:
		total := 0
		thisLevel := 0
		var combined []int
		for _, child := range s.store.slots() {
			r, v := collisionsFor(child)
			total += r
			if r > 0 {
				thisLevel += r - 1
			}
			combined = addVectors(combined, v)
		}
		result := append([]int{thisLevel}, combined...)
		return total, result
	default:
		return 0, nil
	}
}

func addVectors(a, b []int) []int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		if i < len(a) {
			out[i] += a[i]
		}
		if i < len(b) {
			out[i] += b[i]
		}
	}
	return out
}

func trimTrailingZeros(v []int) []int {
	end := len(v)
	for end > 0 && v[end-1] == 0 {
		end--
	}
	return v[:end]
}
