package filededup

import "fmt"

// Key is an opaque digest value. Erasing every BlockingFn's output to a
// single byte-sequence type lets the engine dispatch by id at runtime
// without carrying a type parameter through the whole tree.
type Key string

// BlockingFn is a single digest function paired with descriptive metadata.
// The metadata has no effect on partitioning; it exists purely for
// reporting (blocking(), verbose statistics).
type BlockingFn struct {
	ID     string
	Name   string
	Class  string
	Digest func(object any) (Key, error)
}

// BlockingFactory produces an ordered list of BlockingFns, expanded in
// place wherever it appears in an engine's configured blocking list.
type BlockingFactory interface {
	AllFunctions() ([]BlockingFn, error)
}

// ExpandBlocking flattens a configuration list — where each element is
// either a BlockingFn or a BlockingFactory — into the engine's flat,
// immutable digest chain. It fails with a ConfigError if any element is
// neither, or if a factory cannot produce a usable function list.
func ExpandBlocking(items []any) ([]BlockingFn, error) {
	fns := make([]BlockingFn, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case BlockingFn:
			fns = append(fns, v)
		case BlockingFactory:
			expanded, err := v.AllFunctions()
			if err != nil {
				return nil, &ConfigError{Msg: fmt.Sprintf("blocking factory failed: %v", err)}
			}
			if expanded == nil {
				return nil, &ConfigError{Msg: "blocking factory returned no functions"}
			}
			for _, fn := range expanded {
				if fn.Digest == nil {
					return nil, &ConfigError{Msg: fmt.Sprintf("blocking factory produced a non-callable entry %q", fn.ID)}
				}
			}
			fns = append(fns, expanded...)
		default:
			return nil, &ConfigError{Msg: fmt.Sprintf("blocking configuration item of type %T is neither a BlockingFn nor a BlockingFactory", item)}
		}
	}
	return fns, nil
}
