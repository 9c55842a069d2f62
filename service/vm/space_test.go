package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/service/allocator"
	"github.com/viant/kproc/service/pageref"
)

const testPage = 64

func newPool(t *testing.T, frames int) (*pageref.Pool, *allocator.Service) {
	alloc, err := allocator.New(allocator.Config{Frames: frames, PageSize: testPage})
	require.NoError(t, err)
	return pageref.NewPool(alloc, pageref.NewTable(frames)), alloc
}

func TestSpace_MapTranslate(t *testing.T) {
	pool, alloc := newPool(t, 8)
	space, err := Create(pool, 1, 1<<20)
	require.NoError(t, err)

	frame, err := pool.Alloc(1)
	require.NoError(t, err)
	require.NoError(t, space.Map(testPage, PTE{Frame: frame, Perm: PermR | PermW | PermU}))

	pte, ok := space.Translate(testPage + 3)
	assert.True(t, ok)
	assert.Equal(t, frame, pte.Frame)
	assert.Equal(t, "rw-u", pte.Perm.String())

	_, ok = space.Translate(0)
	assert.False(t, ok)
	_, ok = space.Translate(1 << 20)
	assert.False(t, ok)

	assert.ErrorIs(t, space.Map(testPage, PTE{Frame: frame}), ErrRemap)
	assert.ErrorIs(t, space.Map(3, PTE{Frame: frame}), ErrUnaligned)
	assert.ErrorIs(t, space.Map(1<<20, PTE{Frame: frame}), ErrOutOfRange)

	assert.True(t, space.Update(testPage, func(pte *PTE) {
		pte.Perm &^= PermW
		pte.COW = true
	}))
	pte, _ = space.Translate(testPage)
	assert.True(t, pte.COW)
	assert.False(t, pte.Perm.Has(PermW))

	space.Unmap(testPage, 1, true)
	space.Destroy(0)
	assert.Equal(t, 8, alloc.Available())
}

func TestSpace_GrowShrinkDestroy(t *testing.T) {
	pool, alloc := newPool(t, 8)
	space, err := Create(pool, 1, 1<<20)
	require.NoError(t, err)

	sz, err := space.Grow(0, 3*testPage, PermW)
	require.NoError(t, err)
	assert.EqualValues(t, 3*testPage, sz)
	assert.Equal(t, []uint64{0, testPage, 2 * testPage}, space.Addresses())
	// root + one table + three pages
	assert.Equal(t, 3, alloc.Available())

	sz = space.Shrink(sz, testPage)
	assert.EqualValues(t, testPage, sz)
	assert.Equal(t, 5, alloc.Available())

	space.Destroy(sz)
	assert.Equal(t, 8, alloc.Available())
}

func TestSpace_GrowOutOfMemory(t *testing.T) {
	pool, alloc := newPool(t, 4)
	space, err := Create(pool, 1, 1<<20)
	require.NoError(t, err)

	sz, err := space.Grow(0, 5*testPage, PermW)
	assert.ErrorIs(t, err, allocator.ErrOutOfMemory)
	assert.EqualValues(t, 0, sz)
	assert.Empty(t, space.Addresses())
	space.Destroy(0)
	assert.Equal(t, 4, alloc.Available())
}

func TestSpace_Duplicate(t *testing.T) {
	pool, alloc := newPool(t, 16)
	src, err := Create(pool, 1, 1<<20)
	require.NoError(t, err)
	sz, err := src.Grow(0, 2*testPage, PermW)
	require.NoError(t, err)
	pte, _ := src.Translate(testPage)
	pool.Bytes(pte.Frame)[5] = 'x'

	dst, err := Create(pool, 2, 1<<20)
	require.NoError(t, err)
	require.NoError(t, src.Duplicate(dst, sz))

	copied, ok := dst.Translate(testPage)
	require.True(t, ok)
	assert.NotEqual(t, pte.Frame, copied.Frame)
	assert.Equal(t, byte('x'), pool.Bytes(copied.Frame)[5])
	assert.Equal(t, 1, pool.Refs().Count(pte.Frame))
	assert.Equal(t, 1, pool.Refs().Count(copied.Frame))

	dst.Destroy(sz)
	src.Destroy(sz)
	assert.Equal(t, 16, alloc.Available())
}

func TestSpace_DestroyWithLeftovers(t *testing.T) {
	pool, _ := newPool(t, 8)
	space, err := Create(pool, 1, 1<<20)
	require.NoError(t, err)
	frame, err := pool.Alloc(1)
	require.NoError(t, err)
	require.NoError(t, space.Map(4*testPage, PTE{Frame: frame, Perm: PermR}))
	assert.Panics(t, func() { space.Destroy(0) })
}
