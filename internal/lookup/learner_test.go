package lookup

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestLearner_LearnOnce verifies that the first spelling learned becomes the
canonical for later case variants and that Snapshot exposes the additions.
*/
func TestLearner_LearnOnce(t *testing.T) {
	l := NewLearner()
	defer l.Close()

	assert.Equal(t, "Tom Ford", l.Learn("Brand", "Tom Ford"))
	assert.Equal(t, "Tom Ford", l.Learn("Brand", "TOM FORD"))

	got, ok := l.Resolve("Brand", "tom ford")
	require.True(t, ok)
	assert.Equal(t, "Tom Ford", got)

	snap := l.Snapshot()
	require.Contains(t, snap, "Brand")
	assert.Equal(t, []Group{{Canonical: "Tom Ford", Aliases: []string{"Tom Ford"}}}, snap["Brand"].Groups())
}

func TestLearner_Concurrent(t *testing.T) {
	l := NewLearner()
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Learn("Brand", fmt.Sprintf("brand-%d", i%4))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, l.Snapshot()["Brand"].Len())
}

func TestLearner_Closed(t *testing.T) {
	l := NewLearner()
	l.Close()
	l.Close()

	assert.Equal(t, "x", l.Learn("T", "x"))
	_, ok := l.Resolve("T", "x")
	assert.False(t, ok)
	assert.Empty(t, l.Snapshot())
}
