// Package gochannel provides the in-process watermill pub/sub used by a single automations process.
package gochannel

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// DefaultBuffer is the per-subscriber buffer of entity events awaiting a rule engine.
	DefaultBuffer = 1000
	// MaxBuffer bounds the memory a slow engine can pin.
	MaxBuffer = 1 << 20

	testBuffer = 16
)

var ErrInvalidBuffer = errors.New("event buffer must be between 1 and 1048576")

// Config tunes the in-process channel.
type Config struct {
	// Buffer is how many events each subscriber may lag behind before publishing blocks.
	// Zero means DefaultBuffer.
	Buffer int
	// WaitForEngines makes Emit return only after every subscribed engine has processed
	// the event.
	WaitForEngines bool
}

func (c Config) buffer() (int64, error) {
	switch {
	case c.Buffer == 0:
		return DefaultBuffer, nil
	case c.Buffer < 0 || c.Buffer > MaxBuffer:
		return 0, fmt.Errorf("%w, got %d", ErrInvalidBuffer, c.Buffer)
	default:
		return int64(c.Buffer), nil
	}
}

// New returns one GoChannel serving as both publisher and subscriber. Events are not
// persisted: an event published while no engine listens to its topic is dropped.
func New(config Config, logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	buffer, err := config.buffer()
	if err != nil {
		return nil, nil, err
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            buffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: config.WaitForEngines,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateChannel is New with the default configuration.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return New(Config{}, logger)
}

// CreateTestChannel is New with a small buffer.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return New(Config{Buffer: testBuffer}, logger)
}
