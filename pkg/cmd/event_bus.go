package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/budgetflow/automations/pkg/channels/gochannel"
	"github.com/budgetflow/automations/pkg/channels/kafka"
	"github.com/budgetflow/automations/pkg/eventbus"
)

// EmitterConfig selects and tunes the event bus.
type EmitterConfig struct {
	// Provider is "gochannel" (in-process, the default) or "kafka".
	Provider string
	// Brokers is the comma separated Kafka broker list.
	Brokers       string
	ConsumerGroup string
	// Buffer and Sync apply to gochannel only.
	Buffer int
	Sync   bool
}

// NewEmitter builds the event emitter described by config.
func NewEmitter(config EmitterConfig, logger *slog.Logger) (eventbus.Emitter, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch config.Provider {
	case "", "gochannel":
		pub, sub, err := gochannel.New(gochannel.Config{Buffer: config.Buffer, WaitForEngines: config.Sync}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEmitter(pub, sub, logger), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(config.Brokers), config.ConsumerGroup)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEmitter(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", config.Provider)
	}
}
