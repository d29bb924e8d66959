package framer

import (
	"bytes"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestExtractSplitsOnDelimiter(t *testing.T) {
	f := New()
	assert.NoError(t, f.Append([]byte("foo]]>]]>bar]]>]]>")))

	msg, ok := f.Extract()
	assert.True(t, ok)
	assert.Equal(t, "foo", string(msg))

	msg, ok = f.Extract()
	assert.True(t, ok)
	assert.Equal(t, "bar", string(msg))

	_, ok = f.Extract()
	assert.False(t, ok, "no third message should be available")
}

func TestExtractYieldsSameSequenceRegardlessOfChunkBoundaries(t *testing.T) {
	whole := "alpha]]>]]>beta]]>]]>gamma]]>]]>"
	chunkSizes := []int{1, 3, 7, len(whole)}

	for _, size := range chunkSizes {
		f := New()
		for i := 0; i < len(whole); i += size {
			end := i + size
			if end > len(whole) {
				end = len(whole)
			}
			assert.NoError(t, f.Append([]byte(whole[i:end])))
		}

		var got []string
		for {
			msg, ok := f.Extract()
			if !ok {
				break
			}
			got = append(got, string(msg))
		}
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, got, "chunk size %d", size)
	}
}

func TestAppendOverflowLeavesFramerUnchanged(t *testing.T) {
	f := New()
	assert.NoError(t, f.Append([]byte("first]]>]]>")))

	huge := bytes.Repeat([]byte("x"), MaxBufferedBytes+1)
	err := f.Append(huge)
	assert.ErrorIs(t, err, ErrOverflow)

	msg, ok := f.Extract()
	assert.True(t, ok, "prior message must remain extractable after overflow")
	assert.Equal(t, "first", string(msg))
}

func TestClearDiscardsBufferedBytes(t *testing.T) {
	f := New()
	assert.NoError(t, f.Append([]byte("partial")))
	f.Clear()

	assert.Equal(t, 0, f.Buffered())
	_, ok := f.Extract()
	assert.False(t, ok)
}

func TestDelimiterBytesCountTowardCeiling(t *testing.T) {
	f := New()
	exact := bytes.Repeat([]byte("x"), MaxBufferedBytes-len(Delimiter))
	assert.NoError(t, f.Append(exact))
	assert.NoError(t, f.Append([]byte(Delimiter)))
	assert.Equal(t, MaxBufferedBytes, f.Buffered())

	assert.ErrorIs(t, f.Append([]byte("1")), ErrOverflow)
}
