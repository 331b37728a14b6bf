package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_StaleHandles(t *testing.T) {
	p := NewPool()
	a := p.Acquire()
	assert.False(t, a.IsNil())
	assert.True(t, p.Alive(a))
	assert.False(t, p.Alive(Nil))

	require.True(t, p.Release(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Release(a), "double release should be ignored")

	b := p.Acquire()
	assert.Equal(t, a.Index(), b.Index(), "slot should be recycled")
	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Len())
}

func TestArena_DestroyClearsStores(t *testing.T) {
	a := New()
	names := NewStore[string]()
	a.Attach(names)

	h := a.Create()
	names.Set(h, "tank")
	v, ok := names.Get(h)
	require.True(t, ok)
	assert.Equal(t, "tank", v)

	assert.True(t, a.Destroy(h))
	assert.False(t, names.Has(h))
	assert.False(t, a.Alive(h))
	assert.False(t, a.Destroy(h))
}

func TestArena_FlushLoopsOverNewlyDeferred(t *testing.T) {
	a := New()
	first := a.Create()
	second := a.Create()

	assert.True(t, a.Defer(first))
	assert.False(t, a.Defer(first), "already queued")
	assert.True(t, a.IsPending(first))

	var order []Handle
	n := a.Flush(func(h Handle) {
		order = append(order, h)
		if h == first {
			a.Defer(second)
		}
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, []Handle{first, second}, order)
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, 0, a.Len())
}
