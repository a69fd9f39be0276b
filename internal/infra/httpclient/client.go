// Package httpclient builds the resty clients used for outbound HTTP.
package httpclient

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config holds the resty settings shared by outbound clients.
type Config struct {
	Timeout          time.Duration `yaml:"timeout"`
	RetryCount       int           `yaml:"retryCount"`
	RetryWaitTime    time.Duration `yaml:"retryWaitTime"`
	RetryMaxWaitTime time.Duration `yaml:"retryMaxWaitTime"`
	Debug            bool          `yaml:"debug"`
}

// DefaultConfig mirrors resty's defaults with a bounded timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		RetryWaitTime:    500 * time.Millisecond,
		RetryMaxWaitTime: 5 * time.Second,
	}
}

// ZapAdapter adapts a zap logger to the resty Logger interface.
type ZapAdapter struct {
	logger *zap.SugaredLogger
}

func NewZapAdapter(logger *zap.Logger) resty.Logger {
	return &ZapAdapter{logger: logger.Sugar()}
}

func (a *ZapAdapter) Errorf(format string, v ...interface{}) { a.logger.Error(fmt.Sprintf(format, v...)) }
func (a *ZapAdapter) Warnf(format string, v ...interface{})  { a.logger.Warn(fmt.Sprintf(format, v...)) }
func (a *ZapAdapter) Debugf(format string, v ...interface{}) { a.logger.Debug(fmt.Sprintf(format, v...)) }

// New initializes a resty client from cfg; zero values fall back to DefaultConfig.
func New(cfg Config, logger *zap.Logger) *resty.Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = def.RetryWaitTime
	}
	if cfg.RetryMaxWaitTime <= 0 {
		cfg.RetryMaxWaitTime = def.RetryMaxWaitTime
	}

	client := resty.New()
	if logger != nil {
		client.SetLogger(NewZapAdapter(logger))
	}
	client.
		SetDebug(cfg.Debug).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(cfg.RetryMaxWaitTime).
		SetTimeout(cfg.Timeout)
	return client
}
