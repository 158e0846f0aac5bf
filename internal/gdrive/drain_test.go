package gdrive

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrain_ReportsCumulativeProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), drainChunkSize*2+10)

	var calls []int64

	data, err := Drain(bytes.NewReader(payload), int64(len(payload)), func(done, total int64) {
		assert.Equal(t, int64(len(payload)), total)
		calls = append(calls, done)
	})
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NotEmpty(t, calls)
	assert.Equal(t, int64(len(payload)), calls[len(calls)-1])

	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i], calls[i-1])
	}
}

func TestDrain_NilProgress(t *testing.T) {
	data, err := Drain(strings.NewReader("hello"), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDrain_Empty(t *testing.T) {
	data, err := Drain(strings.NewReader(""), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestDrain_ErrorDiscardsBuffer(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom))

	data, err := Drain(r, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, data)
	assert.Contains(t, err.Error(), "after 7 bytes")
}
