package slicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Chunks splits s into contiguous, ordered sub-slices of at most size elements.
// The last chunk may be shorter. The chunks share memory with s.
func Chunks[S ~[]E, E any](s S, size int) []S {
	if size <= 0 || len(s) == 0 {
		return nil
	}
	chunks := make([]S, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		end := min(start+size, len(s))
		chunks = append(chunks, s[start:end:end])
	}
	return chunks
}

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}
