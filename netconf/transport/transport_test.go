package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/transport/mocks"
)

//go:generate mockgen -destination=mocks/mock_dialer.go -package=mocks github.com/xlnconf/netconf/netconf/transport Dialer

func TestDialFailurePropagatesAsFatalTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("connection refused"))
	dialer.EXPECT().Close(nil).Return(nil)

	tr, err := Dial(context.Background(), dialer, "router1:830")
	assert.Nil(t, tr)
	assert.Error(t, err)

	var ncErr *ncerrors.Error
	assert.True(t, errors.As(err, &ncErr))
	assert.Equal(t, ncerrors.KindTransport, ncErr.Kind)
	assert.True(t, ncErr.Fatal)
}

func TestDialTimesOutWhenContextDeadlineExpires(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).DoAndReturn(func(ctx context.Context) (*ssh.Client, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	dialer.EXPECT().Close(nil).Return(nil).AnyTimes()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, dialer, "router1:830")
	assert.Error(t, err)

	var ncErr *ncerrors.Error
	assert.True(t, errors.As(err, &ncErr))
	assert.Equal(t, ncerrors.KindTimeout, ncErr.Kind)
}

func TestTraceHooksAreInvokedOnConnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("boom"))
	dialer.EXPECT().Close(nil).Return(nil)

	var started, done bool
	trace := &Trace{
		ConnectStart: func(target string) { started = true },
		ConnectDone: func(target string, err error, d time.Duration) {
			done = true
			assert.Error(t, err)
		},
	}

	_, err := Dial(WithTrace(context.Background(), trace), dialer, "router1:830")
	assert.Error(t, err)
	assert.True(t, started)
	assert.True(t, done)
}
