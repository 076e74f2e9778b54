package slicehelp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestChunks(t *testing.T) {
	var tests = []struct {
		s    []string
		size int
		want [][]string
	}{
		0: {s: []string{"a", "b", "c", "d", "e"}, size: 2, want: [][]string{{"a", "b"}, {"c", "d"}, {"e"}}},
		1: {s: []string{"a", "b", "c", "d"}, size: 4, want: [][]string{{"a", "b", "c", "d"}}},
		2: {s: []string{"a", "b"}, size: 10, want: [][]string{{"a", "b"}}},
		3: {s: []string{"a"}, size: 0, want: nil},
		4: {s: nil, size: 3, want: nil},
	}
	for k, tt := range tests {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			assert.Equal(t, tt.want, Chunks(tt.s, tt.size))
		})
	}
}

func TestChunks_NoAliasingOnAppend(t *testing.T) {
	s := []int{1, 2, 3, 4}
	chunks := Chunks(s, 2)
	_ = append(chunks[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, s)
}

func TestOrderedMapKeys(t *testing.T) {
	m := orderedmap.New[string, int]()
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("m", 3)
	assert.Equal(t, []string{"z", "a", "m"}, OrderedMapKeys(m))
}
