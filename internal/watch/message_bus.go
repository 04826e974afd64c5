package watch

import (
	"context"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
)

const metaTestID = "test_id"

// MessageBus publishes definitions on one watermill topic and fans a
// single upstream subscription out to local listeners by test id.
type MessageBus struct {
	pub     message.Publisher
	sub     message.Subscriber
	closers []io.Closer
	topic   string
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	closed    bool
	listeners map[string]map[*listener]struct{}
}

// NewMessageBus wraps an existing publisher and subscriber pair.
func NewMessageBus(pub message.Publisher, sub message.Subscriber, topic string, logger *zap.Logger, closers ...io.Closer) *MessageBus {
	if topic == "" {
		topic = DefaultTopic
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MessageBus{
		pub:       pub,
		sub:       sub,
		closers:   closers,
		topic:     topic,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		listeners: map[string]map[*listener]struct{}{},
	}
}

// NewGoChannelBus is an in-process bus. Listeners only see publishes from
// the same process.
func NewGoChannelBus(topic string, logger *zap.Logger) *MessageBus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewLoggerAdapter(logger))
	return NewMessageBus(ch, ch, topic, logger, ch)
}

// NewKafkaBus publishes to and consumes from a Kafka topic. Every process
// needs its own consumer group so that each one sees every change.
func NewKafkaBus(brokers []string, topic, consumerGroup string, logger *zap.Logger) (*MessageBus, error) {
	wl := NewLoggerAdapter(logger)
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wl)
	if err != nil {
		return nil, err
	}
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       brokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: consumerGroup,
	}, wl)
	if err != nil {
		pub.Close()
		return nil, err
	}
	return NewMessageBus(pub, sub, topic, logger, sub, pub), nil
}

func (b *MessageBus) Publish(ctx context.Context, d exam.Definition) error {
	payload, err := encode(d)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaTestID, d.TestID)
	msg.SetContext(ctx)
	if err := b.pub.Publish(b.topic, msg); err != nil {
		return exam.Unavailable("publish change", err)
	}
	return nil
}

func (b *MessageBus) Listen(ctx context.Context, testID string) (<-chan exam.Definition, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, exam.Unavailable("listen", io.ErrClosedPipe)
	}
	if !b.started {
		msgs, err := b.sub.Subscribe(b.ctx, b.topic)
		if err != nil {
			b.mu.Unlock()
			return nil, exam.Unavailable("subscribe", err)
		}
		b.started = true
		go b.dispatch(msgs)
	}
	l := &listener{ch: make(chan exam.Definition, 1)}
	set, ok := b.listeners[testID]
	if !ok {
		set = map[*listener]struct{}{}
		b.listeners[testID] = set
	}
	set[l] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.remove(testID, l)
		l.close()
	}()
	return l.ch, nil
}

func (b *MessageBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *MessageBus) dispatch(msgs <-chan *message.Message) {
	for msg := range msgs {
		testID := msg.Metadata.Get(metaTestID)
		d, err := decode(msg.Payload)
		if err != nil {
			b.logger.Warn("dropping undecodable change", zap.String("test_id", testID), zap.Error(err))
			msg.Ack()
			continue
		}
		for _, l := range b.snapshot(testID) {
			l.send(d)
		}
		msg.Ack()
	}
}

func (b *MessageBus) snapshot(testID string) []*listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*listener, 0, len(b.listeners[testID]))
	for l := range b.listeners[testID] {
		out = append(out, l)
	}
	return out
}

func (b *MessageBus) remove(testID string, l *listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners[testID], l)
	if len(b.listeners[testID]) == 0 {
		delete(b.listeners, testID)
	}
}

// listener is one Listen call. send and close never race on ch.
type listener struct {
	mu     sync.Mutex
	closed bool
	ch     chan exam.Definition
}

// send never blocks. A definition the listener has not taken yet is
// replaced by the newer one.
func (l *listener) send(d exam.Definition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for {
		select {
		case l.ch <- d:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
