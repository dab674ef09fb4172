package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of the service configuration.
type Bootstrap struct {
	Server    *Server    `json:"server"`
	Data      *Data      `json:"data"`
	Rocketmq  *RocketMQ  `json:"rocketmq"`
	Tracker   *Tracker   `json:"tracker"`
	Retention *Retention `json:"retention"`
}

type Server struct {
	Http *Server_HTTP `json:"http"`
	Grpc *Server_GRPC `json:"grpc"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Server_GRPC struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
}

type Data_Database struct {
	Username        string    `json:"username"`
	Password        string    `json:"password"`
	Host            string    `json:"host"`
	Port            int32     `json:"port"`
	DbName          string    `json:"db_name"`
	MaxIdleConns    int32     `json:"max_idle_conns"`
	MaxOpenConns    int32     `json:"max_open_conns"`
	DbCharset       string    `json:"db_charset"`
	ConnMaxLifetime *Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime *Duration `json:"conn_max_idle_time"`
	SlowThreshold   *Duration `json:"slow_threshold"`
}

type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int32     `json:"db"`
	DialTimeout  *Duration `json:"dial_timeout"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

type RocketMQ struct {
	NameServers   string    `json:"name_servers"`
	ProducerGroup string    `json:"producer_group"`
	AccessKey     string    `json:"access_key"`
	SecretKey     string    `json:"secret_key"`
	SendTimeout   *Duration `json:"send_timeout"`
	RetryTimes    int32     `json:"retry_times"`
}

// Tracker configures transaction correlation and its event sinks.
type Tracker struct {
	// Name is reported as the target of every lifecycle event.
	Name string `json:"name"`
	// Sinks lists the enabled event sinks: log, redis, rocketmq.
	Sinks []string `json:"sinks"`
	// StreamKey is the redis stream lifecycle events are appended to.
	StreamKey string `json:"stream_key"`
	// StreamMaxLen caps the redis stream length (approximate trimming).
	StreamMaxLen int64 `json:"stream_max_len"`
	// Topic is the rocketmq topic lifecycle events are published to.
	Topic string `json:"topic"`
	// DefaultTimeout bounds transactions that do not set their own.
	DefaultTimeout *Duration `json:"default_timeout"`
	// SinkTimeout bounds a single emit to the redis or rocketmq sink.
	SinkTimeout *Duration `json:"sink_timeout"`
}

// Retention configures purging of old change records.
type Retention struct {
	Interval *Duration `json:"interval"`
	MaxAge   *Duration `json:"max_age"`
}

// Duration is a time.Duration that decodes from "1.5s" style strings or from
// integer nanoseconds.
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration returns the wrapped value; nil yields zero.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	return nil
}
