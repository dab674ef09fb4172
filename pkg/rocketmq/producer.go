package rocketmq

import (
	"context"
	"fmt"
	"os"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/go-kratos/kratos/v2/log"
)

func init() {
	if err := os.Setenv("mq.consoleAppender.enabled", "true"); err != nil {
		panic(err)
	}
	rmq.ResetLogger()
}

// SendReceipt contains the result of a message send operation.
type SendReceipt struct {
	MessageID string
	Offset    int64
}

// Message represents a message to be sent to RocketMQ.
type Message struct {
	Topic      string
	Body       []byte
	Keys       []string          // Message keys for lookup
	Tag        string            // Message tag for consumer side filtering
	Properties map[string]string // User properties
}

func (m *Message) toRMQ() *rmq.Message {
	msg := &rmq.Message{
		Topic: m.Topic,
		Body:  m.Body,
	}
	if len(m.Keys) > 0 {
		msg.SetKeys(m.Keys...)
	}
	if m.Tag != "" {
		msg.SetTag(m.Tag)
	}
	for k, v := range m.Properties {
		msg.AddProperty(k, v)
	}
	return msg
}

// Producer wraps the RocketMQ v5 producer.
type Producer struct {
	client rmq.Producer
	log    *log.Helper
	cfg    *Config
}

// NewProducer creates and starts a RocketMQ v5 producer.
func NewProducer(cfg *Config, topics []string, logger log.Logger) (*Producer, func(), error) {
	logHelper := log.NewHelper(log.With(logger, "module", "pkg/rocketmq"))

	configureSSL(cfg.EnableSSL)

	opts := []rmq.ProducerOption{
		rmq.WithMaxAttempts(cfg.MaxAttempts),
	}

	if len(topics) > 0 {
		opts = append(opts, rmq.WithTopics(topics...))
	}

	p, err := rmq.NewProducer(cfg.ToRMQConfig(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create rocketmq producer: %w", err)
	}

	if err := p.Start(); err != nil {
		return nil, nil, fmt.Errorf("start rocketmq producer: %w", err)
	}

	logHelper.Infof("rocketmq producer started, endpoint=%s", cfg.Endpoint)

	cleanup := func() {
		logHelper.Info("shutting down rocketmq producer")
		if err := p.GracefulStop(); err != nil {
			logHelper.Errorf("shutdown rocketmq producer: %v", err)
		}
	}

	return &Producer{
		client: p,
		log:    logHelper,
		cfg:    cfg,
	}, cleanup, nil
}

// SendMessage sends msg synchronously, bounded by the configured send timeout.
func (p *Producer) SendMessage(ctx context.Context, msg *Message) (*SendReceipt, error) {
	if p.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SendTimeout)
		defer cancel()
	}

	receipts, err := p.client.Send(ctx, msg.toRMQ())
	if err != nil {
		p.log.WithContext(ctx).Errorf("send to %s failed: %v", msg.Topic, err)
		return nil, fmt.Errorf("send message: %w", err)
	}

	if len(receipts) == 0 {
		return nil, fmt.Errorf("send message: no receipt returned")
	}

	result := receipts[0]
	p.log.WithContext(ctx).Debugf("sent to %s, msgId=%s", msg.Topic, result.MessageID)

	return &SendReceipt{
		MessageID: result.MessageID,
		Offset:    result.Offset,
	}, nil
}
