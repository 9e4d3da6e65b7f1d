// internal/pkg/mq/kafka_test.go
package mq

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestGetHeader(t *testing.T) {
	headers := []kafka.Header{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}

	assert.Equal(t, "1", GetHeader(headers, "a"))
	assert.Equal(t, "2", GetHeader(headers, "b"))
	assert.Equal(t, "", GetHeader(headers, "missing"))
}

func TestSetHeader_OverwritesExisting(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}

	headers = SetHeader(headers, "a", "2")
	assert.Len(t, headers, 1)
	assert.Equal(t, "2", GetHeader(headers, "a"))

	headers = SetHeader(headers, "b", "3")
	assert.Len(t, headers, 2)
	assert.Equal(t, "3", GetHeader(headers, "b"))
}

func TestKafkaHeaderCarrier(t *testing.T) {
	carrier := KafkaHeaderCarrier{}

	carrier.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))

	carrier.Set("traceparent", "00-abc-def-02")
	assert.Equal(t, "00-abc-def-02", carrier.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())
}
