package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AllocateFree(t *testing.T) {
	srv, err := New(Config{Frames: 3, PageSize: 64})
	require.NoError(t, err)
	assert.Equal(t, 3, srv.Available())

	var frames []int
	for i := 0; i < 3; i++ {
		f, err := srv.Allocate()
		require.NoError(t, err)
		frames = append(frames, f)
		assert.Equal(t, byte(junkOnAlloc), srv.Bytes(f)[0])
	}
	assert.Equal(t, []int{0, 1, 2}, frames)

	_, err = srv.Allocate()
	assert.ErrorIs(t, err, ErrOutOfMemory)

	srv.Bytes(1)[0] = 42
	srv.Free(1)
	assert.Equal(t, 1, srv.Available())
	assert.Equal(t, byte(junkOnFree), srv.Bytes(1)[0])

	f, err := srv.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 1, f)
}

func TestService_FreeInvariant(t *testing.T) {
	srv, err := New(Config{Frames: 2, PageSize: 64})
	require.NoError(t, err)
	assert.Panics(t, func() { srv.Free(0) })
	assert.Panics(t, func() { srv.Free(7) })
	f, err := srv.Allocate()
	require.NoError(t, err)
	srv.Free(f)
	assert.Panics(t, func() { srv.Free(f) })
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		config    Config
		expectErr bool
	}{
		{name: "default", config: DefaultConfig()},
		{name: "no frames", config: Config{Frames: 0, PageSize: 4096}, expectErr: true},
		{name: "odd page", config: Config{Frames: 1, PageSize: 1000}, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := testCase.config.Validate()
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
