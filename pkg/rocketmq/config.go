package rocketmq

import (
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
)

var sslOnce sync.Once

// configureSSL sets the global SSL flag once in a thread-safe manner.
// The first call determines the value; subsequent calls are no-ops.
func configureSSL(enable bool) {
	sslOnce.Do(func() {
		rmq.EnableSsl = enable
	})
}

// Config holds RocketMQ producer configuration for the v5 SDK.
type Config struct {
	Endpoint    string                          // gRPC proxy endpoint (e.g., "127.0.0.1:8081")
	NameSpace   string                          // Optional namespace
	Group       string                          // Producer group, reported to the proxy
	Credentials *credentials.SessionCredentials // Authentication credentials
	SendTimeout time.Duration                   // Per message send timeout
	MaxAttempts int32                           // Max send attempts
	EnableSSL   bool                            // Whether to enable SSL
}

// NewConfig creates a Config from the service configuration.
// The v5 SDK talks gRPC to a single proxy, so only the first of
// name_servers is used.
func NewConfig(c *conf.RocketMQ) *Config {
	cfg := &Config{
		Group:       c.ProducerGroup,
		SendTimeout: 3 * time.Second,
		MaxAttempts: 3,
		Credentials: &credentials.SessionCredentials{
			AccessKey:    c.AccessKey,
			AccessSecret: c.SecretKey,
		},
	}

	servers := strings.ReplaceAll(c.NameServers, ";", ",")
	if first, _, _ := strings.Cut(servers, ","); first != "" {
		cfg.Endpoint = strings.TrimSpace(first)
	}

	if d := c.SendTimeout.AsDuration(); d > 0 {
		cfg.SendTimeout = d
	}
	if c.RetryTimes > 0 {
		cfg.MaxAttempts = c.RetryTimes
	}

	return cfg
}

// ToRMQConfig converts Config to RocketMQ v5 SDK Config.
func (c *Config) ToRMQConfig() *rmq.Config {
	return &rmq.Config{
		Endpoint:      c.Endpoint,
		NameSpace:     c.NameSpace,
		ConsumerGroup: c.Group,
		Credentials:   c.Credentials,
	}
}
