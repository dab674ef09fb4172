package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/encoding"
	"github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
	"github.com/guoxiaopeng875/txcorrelation/pkg/rocketmq"
	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

// Sink names accepted in conf.Tracker.Sinks.
const (
	SinkLog      = "log"
	SinkRedis    = "redis"
	SinkRocketMQ = "rocketmq"
)

const (
	defaultStreamKey   = "txcorrelation:events"
	defaultTopic       = "txcorrelation_events"
	defaultSinkTimeout = time.Second
)

// eventMessage is the wire form of a lifecycle event.
type eventMessage struct {
	Kind   string `json:"kind"`
	Token  string `json:"token"`
	Target string `json:"target"`
	Time   string `json:"time"`
}

func newEventMessage(ev txtrack.Event) eventMessage {
	return eventMessage{
		Kind:   ev.Kind.String(),
		Token:  ev.Token.String(),
		Target: ev.Target,
		Time:   ev.Time.UTC().Format(time.RFC3339Nano),
	}
}

// RedisSink appends lifecycle events to a redis stream so that other
// processes can correlate transactions without sharing the slot.
type RedisSink struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisSink creates a RedisSink writing to stream. A positive maxLen trims
// the stream approximately.
func NewRedisSink(rdb redis.Cmdable, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = defaultStreamKey
	}
	return &RedisSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Emit implements txtrack.Sink.
func (s *RedisSink) Emit(ctx context.Context, ev txtrack.Event) error {
	msg := newEventMessage(ev)
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: []any{"kind", msg.Kind, "token", msg.Token, "target", msg.Target, "time", msg.Time},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// messageSender is the part of rocketmq.Producer MQSink needs.
type messageSender interface {
	SendMessage(ctx context.Context, msg *rocketmq.Message) (*rocketmq.SendReceipt, error)
}

// MQSink publishes lifecycle events to a rocketmq topic. The event kind is
// the message tag and the token is the message key.
type MQSink struct {
	sender messageSender
	topic  string
	codec  encoding.Codec
}

// NewMQSink creates an MQSink publishing to topic.
func NewMQSink(sender messageSender, topic string) *MQSink {
	if topic == "" {
		topic = defaultTopic
	}
	return &MQSink{sender: sender, topic: topic, codec: encoding.GetCodec(json.Name)}
}

// Emit implements txtrack.Sink.
func (s *MQSink) Emit(ctx context.Context, ev txtrack.Event) error {
	body, err := s.codec.Marshal(newEventMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &rocketmq.Message{
		Topic: s.topic,
		Body:  body,
		Tag:   ev.Kind.String(),
		Properties: map[string]string{
			"target": ev.Target,
		},
	}
	if ev.Token != "" {
		msg.Keys = []string{ev.Token.Base().String()}
	}
	_, err = s.sender.SendMessage(ctx, msg)
	return err
}

// detached runs s with a context that keeps the values of the caller's
// context but not its cancellation or deadline, bounded by timeout instead.
// Events are emitted inside Begin, Commit and Rollback; a slow broker must
// not consume the transaction's own deadline.
func detached(s txtrack.Sink, timeout time.Duration) txtrack.Sink {
	return txtrack.SinkFunc(func(ctx context.Context, ev txtrack.Event) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.Emit(ctx, ev)
	})
}

// NewEventSink builds the sink set enabled in c. The rocketmq producer is
// only started when the rocketmq sink is enabled. The redis and rocketmq
// sinks run detached from the transaction context, each emit bounded by
// c.SinkTimeout.
func NewEventSink(c *conf.Tracker, mq *conf.RocketMQ, d *Data, logger log.Logger) (txtrack.Sink, func(), error) {
	sinkNames := []string{SinkLog}
	if c != nil && len(c.Sinks) > 0 {
		sinkNames = c.Sinks
	}
	sinkTimeout := defaultSinkTimeout
	if c != nil && c.SinkTimeout.AsDuration() > 0 {
		sinkTimeout = c.SinkTimeout.AsDuration()
	}

	var (
		sinks    txtrack.MultiSink
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	for _, name := range sinkNames {
		switch name {
		case SinkLog:
			sinks = append(sinks, txtrack.NewLogSink(logger))
		case SinkRedis:
			sinks = append(sinks, detached(NewRedisSink(d.rdb, c.StreamKey, c.StreamMaxLen), sinkTimeout))
		case SinkRocketMQ:
			if mq == nil {
				cleanup()
				return nil, nil, fmt.Errorf("rocketmq sink enabled without rocketmq config")
			}
			topic := c.Topic
			if topic == "" {
				topic = defaultTopic
			}
			producer, producerCleanup, err := rocketmq.NewProducer(rocketmq.NewConfig(mq), []string{topic}, logger)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			cleanups = append(cleanups, producerCleanup)
			sinks = append(sinks, detached(NewMQSink(producer, topic), sinkTimeout))
		default:
			cleanup()
			return nil, nil, fmt.Errorf("unknown event sink %q", name)
		}
	}

	return sinks, cleanup, nil
}
