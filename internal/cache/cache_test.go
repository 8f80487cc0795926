package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Run("get on empty cache misses", func(t *testing.T) {
		c := New()
		_, ok := c.Get("/repos/o/r")
		require.False(t, ok)
		require.Equal(t, 0, c.Len())
	})

	t.Run("put overwrites previous entry", func(t *testing.T) {
		c := New()
		c.Put("/a", Entry{Validator: `"v1"`, Body: []byte("one"), StatusText: "200 OK"})
		c.Put("/a", Entry{Validator: `"v2"`, Body: []byte("two"), StatusText: "200 OK"})

		e, ok := c.Get("/a")
		require.True(t, ok)
		require.Equal(t, `"v2"`, e.Validator)
		require.Equal(t, []byte("two"), e.Body)
		require.Equal(t, 1, c.Len())
	})

	t.Run("put copies the body", func(t *testing.T) {
		c := New()
		buf := []byte("original")
		c.Put("/a", Entry{Validator: `"v"`, Body: buf})
		copy(buf, "mutated!")

		e, _ := c.Get("/a")
		require.Equal(t, []byte("original"), e.Body)
	})

	t.Run("clear drops everything", func(t *testing.T) {
		c := New()
		c.Put("/a", Entry{Validator: `"a"`})
		c.Put("/b", Entry{Validator: `"b"`})
		c.Clear()

		_, ok := c.Get("/a")
		require.False(t, ok)
		require.Equal(t, 0, c.Len())
	})

	t.Run("concurrent writers do not race", func(t *testing.T) {
		c := New()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c.Put("/shared", Entry{Validator: "v", Body: []byte{byte(i)}})
				_, _ = c.Get("/shared")
			}(i)
		}
		wg.Wait()
		require.Equal(t, 1, c.Len())
	})
}
