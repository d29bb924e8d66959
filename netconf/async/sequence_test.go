package async

import (
	"context"
	"errors"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
)

func TestSequenceIsColdUntilFirstNext(t *testing.T) {
	started := make(chan struct{}, 1)

	seq := New(func(ctx context.Context, emit func(int) bool, stop <-chan struct{}) error {
		started <- struct{}{}
		emit(1)
		return nil
	})

	select {
	case <-started:
		t.Fatal("producer must not run before Next is called")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok, err := seq.Next(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestSequenceEmitsThenCompletes(t *testing.T) {
	seq := New(func(ctx context.Context, emit func(int) bool, stop <-chan struct{}) error {
		for i := 0; i < 3; i++ {
			if !emit(i) {
				return nil
			}
		}
		return nil
	})

	got, err := seq.Collect(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestSequencePropagatesProducerError(t *testing.T) {
	boom := errors.New("boom")
	seq := New(func(ctx context.Context, emit func(int) bool, stop <-chan struct{}) error {
		emit(1)
		return boom
	})

	v, ok, err := seq.Next(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok, err = seq.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestCancelDetachesProducerBeforeNextEmission(t *testing.T) {
	unblocked := make(chan struct{})
	seq := New(func(ctx context.Context, emit func(int) bool, stop <-chan struct{}) error {
		emit(1)
		<-stop
		close(unblocked)
		return nil
	})

	v, ok, err := seq.Next(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	seq.Cancel()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("producer should observe stop after Cancel")
	}

	_, ok, err = seq.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestFailReturnsImmediatelyFailedSequence(t *testing.T) {
	boom := errors.New("invalid xpath")
	seq := Fail[int](boom)

	_, ok, err := seq.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestNextRespectsCallerContext(t *testing.T) {
	seq := New(func(ctx context.Context, emit func(int) bool, stop <-chan struct{}) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok, err := seq.Next(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}
