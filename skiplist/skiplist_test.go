package skiplist

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertGet(t *testing.T) {
	l := New()

	_, found := l.Get("missing")
	require.False(t, found)

	overwrote := l.Insert("a", "1")
	require.False(t, overwrote)

	v, found := l.Get("a")
	require.True(t, found)
	require.Equal(t, "1", v)

	overwrote = l.Insert("a", "2")
	require.True(t, overwrote)

	v, found = l.Get("a")
	require.True(t, found)
	require.Equal(t, "2", v)
	require.EqualValues(t, 1, l.Len())
}

func TestLevel0OrderingIsStrictlyAscending(t *testing.T) {
	l := New()
	keys := []string{"banana", "apple", "cherry", "date", "elderberry", "fig"}
	for _, k := range keys {
		l.Insert(k, "v")
	}

	it := l.NewIterator()
	it.SeekToFirst()
	var seen []string
	for it.Valid() {
		seen = append(seen, it.Key())
		it.Next()
	}

	sorted := append([]string{}, keys...)
	sort.Strings(sorted)
	require.Equal(t, sorted, seen)

	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i])
	}
}

func TestDeleteUnsplicesAndLowersLevel(t *testing.T) {
	l := New()
	for i := 0; i < 50; i++ {
		l.Insert(fmt.Sprintf("k%03d", i), "v")
	}

	require.True(t, l.Delete("k025"))
	_, found := l.Get("k025")
	require.False(t, found)
	require.False(t, l.Delete("k025"))

	// Deleting everything should bring listLevel back down to 1.
	for i := 0; i < 50; i++ {
		l.Delete(fmt.Sprintf("k%03d", i))
	}
	require.EqualValues(t, 0, l.Len())
	require.Equal(t, 1, l.listLevel)
}

func TestApproximateSizeTracksDelta(t *testing.T) {
	l := New()
	require.EqualValues(t, 0, l.ApproximateSize())

	l.Insert("key", "value")
	require.EqualValues(t, len("key")+len("value"), l.ApproximateSize())

	l.Insert("key", "longer-value")
	require.EqualValues(t, len("key")+len("longer-value"), l.ApproximateSize())

	l.Delete("key")
	require.EqualValues(t, 0, l.ApproximateSize())
}

func TestDumpLoadRoundTrip(t *testing.T) {
	l := New()
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		l.Insert(k, v)
	}

	loaded, err := Load(l.Dump())
	require.NoError(t, err)

	for k, v := range want {
		got, found := loaded.Get(k)
		require.True(t, found)
		require.Equal(t, v, got)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	l := New()
	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				l.Insert(key, fmt.Sprintf("v%d", r.Int()))
				v, found := l.Get(key)
				require.True(t, found)
				require.NotEmpty(t, v)
			}
		}(w)
	}
	wg.Wait()

	require.EqualValues(t, writers*perWriter, l.Len())
}
