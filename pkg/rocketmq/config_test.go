package rocketmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name        string
		input       *conf.RocketMQ
		endpoint    string
		sendTimeout time.Duration
		maxAttempts int32
	}{
		{
			name:        "defaults",
			input:       &conf.RocketMQ{NameServers: "127.0.0.1:8081"},
			endpoint:    "127.0.0.1:8081",
			sendTimeout: 3 * time.Second,
			maxAttempts: 3,
		},
		{
			name: "first of several servers",
			input: &conf.RocketMQ{
				NameServers: " 10.0.0.1:8081 ;10.0.0.2:8081",
				SendTimeout: conf.NewDuration(time.Second),
				RetryTimes:  5,
			},
			endpoint:    "10.0.0.1:8081",
			sendTimeout: time.Second,
			maxAttempts: 5,
		},
		{
			name:        "empty servers",
			input:       &conf.RocketMQ{},
			endpoint:    "",
			sendTimeout: 3 * time.Second,
			maxAttempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.input)
			assert.Equal(t, tt.endpoint, cfg.Endpoint)
			assert.Equal(t, tt.sendTimeout, cfg.SendTimeout)
			assert.Equal(t, tt.maxAttempts, cfg.MaxAttempts)
		})
	}
}

func TestConfig_ToRMQConfig(t *testing.T) {
	cfg := NewConfig(&conf.RocketMQ{
		NameServers:   "127.0.0.1:8081",
		ProducerGroup: "txcorrelation",
		AccessKey:     "ak",
		SecretKey:     "sk",
	})

	rc := cfg.ToRMQConfig()
	assert.Equal(t, "127.0.0.1:8081", rc.Endpoint)
	assert.Equal(t, "txcorrelation", rc.ConsumerGroup)
	assert.Equal(t, "ak", rc.Credentials.AccessKey)
	assert.Equal(t, "sk", rc.Credentials.AccessSecret)
}
