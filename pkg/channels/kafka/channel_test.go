package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{"empty", "", []string{}},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with blanks", " a:9092, ,b:9092 ,", []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseBrokers(tt.raw))
		})
	}
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	pub, sub, err := CreateChannel(watermill.NopLogger{}, nil, "automations")
	require.ErrorIs(t, err, ErrNoBrokers)
	assert.Nil(t, pub)
	assert.Nil(t, sub)
}
