package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
)

func TestEncode(t *testing.T) {
	messages, err := encode([]Event{
		{Key: "index_built", Value: map[string]int{"terms": 5}},
		{Key: "search", Value: "cat"},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, []byte("index_built"), messages[0].Key)
	assert.JSONEq(t, `{"terms":5}`, string(messages[0].Value))
	assert.Equal(t, `"cat"`, string(messages[1].Value))
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9"}}, "test")
	defer p.Close()

	err := p.Publish(context.Background(), Event{Key: "bad", Value: make(chan int)})
	assert.ErrorContains(t, err, "marshaling event")
}
