// Package consumer reads raw population payloads from a Kafka topic
// and hands them to the message loop in arrival order.
//
// The client wraps a consumer-group reader: broker addresses, the
// topic and the group id come from configuration, and offset tracking
// is the group coordinator's job. Payloads are delivered on a bounded
// channel; when the processing loop falls behind, the read loop blocks
// instead of dropping, so one message is in flight at a time as far as
// the pipeline is concerned.
//
// Closing the reader (Stop, or context cancellation) ends the read
// loop and closes the delivery channel, which the message loop treats
// as end of stream.
package consumer

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"poptrend/config"
	"poptrend/internal/ratelimit"
)

const readErrorLogInterval = 30 * time.Second

// Message is one raw payload with its source coordinates.
type Message struct {
	Payload   []byte
	Partition int
	Offset    int64
	Time      time.Time
}

// Client consumes one Kafka topic as part of a consumer group.
type Client struct {
	reader     *kafka.Reader
	fetch      func(context.Context) (kafka.Message, error)
	messages   chan Message
	topic      string
	groupID    string
	retryDelay time.Duration
	stopOnce   sync.Once
	readErrs   *ratelimit.Counter
}

// NewClient builds a client for the configured topic and group.
func NewClient(cfg config.KafkaConfig) *Client {
	reader := kafka.NewReader(readerConfig(cfg))
	c := &Client{
		reader:     reader,
		messages:   make(chan Message, cfg.QueueSize),
		topic:      cfg.Topic,
		groupID:    cfg.GroupID,
		retryDelay: time.Second,
		readErrs:   ratelimit.NewCounter(readErrorLogInterval),
	}
	c.fetch = reader.ReadMessage
	return c
}

// readerConfig maps our config onto the kafka-go reader settings.
func readerConfig(cfg config.KafkaConfig) kafka.ReaderConfig {
	startOffset := kafka.FirstOffset
	if strings.EqualFold(strings.TrimSpace(cfg.StartOffset), "latest") {
		startOffset = kafka.LastOffset
	}
	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: startOffset,
	}
}

// Start launches the read loop. The loop owns the delivery channel and
// closes it when the reader shuts down or the context is cancelled.
func (c *Client) Start(ctx context.Context) {
	if c == nil {
		return
	}
	log.Printf("Consumer: polling topic %q as group %q", c.topic, c.groupID)
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	defer close(c.messages)
	for {
		msg, err := c.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			if count, ok := c.readErrs.Inc(); ok {
				log.Printf("Consumer: read error (total=%d): %v", count, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}
		select {
		case c.messages <- convertMessage(msg):
		case <-ctx.Done():
			return
		}
	}
}

func convertMessage(msg kafka.Message) Message {
	return Message{
		Payload:   msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
}

// Messages returns the delivery channel. It is closed when the source
// is released.
func (c *Client) Messages() <-chan Message {
	if c == nil {
		return nil
	}
	return c.messages
}

// Topic returns the topic this client consumes.
func (c *Client) Topic() string {
	if c == nil {
		return ""
	}
	return c.topic
}

// Stats reports the reader's transport counters for the stats display.
func (c *Client) Stats() kafka.ReaderStats {
	if c == nil || c.reader == nil {
		return kafka.ReaderStats{}
	}
	return c.reader.Stats()
}

// Stop releases the Kafka reader. Safe to call from any exit path and
// more than once; the first call wins.
func (c *Client) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		if c.reader == nil {
			return
		}
		log.Printf("Consumer: closing reader for topic %q", c.topic)
		if err := c.reader.Close(); err != nil {
			log.Printf("Consumer: close error: %v", err)
		}
	})
}
