package gochannel

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigBuffer(t *testing.T) {
	tests := []struct {
		name    string
		buffer  int
		want    int64
		wantErr bool
	}{
		{name: "zero uses default", buffer: 0, want: DefaultBuffer},
		{name: "explicit", buffer: 64, want: 64},
		{name: "upper bound", buffer: MaxBuffer, want: MaxBuffer},
		{name: "negative", buffer: -1, wantErr: true},
		{name: "too large", buffer: MaxBuffer + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Config{Buffer: tt.buffer}.buffer()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidBuffer)

				_, _, err = New(Config{Buffer: tt.buffer}, watermill.NopLogger{})
				require.ErrorIs(t, err, ErrInvalidBuffer)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_WaitForEngines(t *testing.T) {
	pub, sub, err := New(Config{Buffer: 1, WaitForEngines: true}, watermill.NopLogger{})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pub.Close())
	})

	messages, err := sub.Subscribe(t.Context(), "automation.transaction.created")
	require.NoError(t, err)

	var handled atomic.Bool

	go func() {
		for msg := range messages {
			time.Sleep(20 * time.Millisecond)
			handled.Store(true)
			msg.Ack()
		}
	}()

	err = pub.Publish("automation.transaction.created", message.NewMessage(watermill.NewUUID(), []byte(`{}`)))
	require.NoError(t, err)
	assert.True(t, handled.Load(), "publish returns only after the subscriber acked")
}

func TestCreateChannel_SharesPubSub(t *testing.T) {
	pub, sub, err := CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, pub, sub)
	require.NoError(t, pub.Close())
}
