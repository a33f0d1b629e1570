package generic

// Set is an unordered collection of unique items. Implementations are not safe for concurrent use.
type Set[T comparable] interface {
	Add(item T) bool
	Contains(items ...T) bool
	Count() int
}

func NewSet[T comparable](items ...T) Set[T] {
	res := make(set[T], len(items))
	for _, item := range items {
		res.Add(item)
	}
	return &res
}

type set[T comparable] map[T]Void

// Add returns false if the item was already present.
func (s *set[T]) Add(item T) bool {
	if _, found := (*s)[item]; found {
		return false
	}
	(*s)[item] = NewVoid()
	return true
}

// Contains returns true only if every one of items is present.
func (s *set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := (*s)[item]; !found {
			return false
		}
	}
	return true
}

func (s *set[T]) Count() int {
	return len(*s)
}
