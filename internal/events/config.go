package events

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/formportal/internal/logger"
)

// LoadConfig reads YAML from file path. If path is empty, returns zero value.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	return c, err
}

// Build creates the sinks enabled in cfg and returns a dispatcher over them.
// A sink that fails to start is logged and left out.
func Build(cfg Config, dlq DLQ) *Dispatcher {
	var sinks []Sink
	if wh := NewWebhookSink(cfg.Sinks.Webhook); wh != nil {
		sinks = append(sinks, wh)
	}
	if rs, err := NewRedisSink(cfg.Sinks.Redis); err == nil && rs != nil {
		sinks = append(sinks, rs)
	} else if err != nil {
		logger.L.Error("redis sink", "err", err)
	}
	if ks, err := NewKafkaSink(cfg.Sinks.Kafka); err == nil && ks != nil {
		sinks = append(sinks, ks)
	} else if err != nil {
		logger.L.Error("kafka sink", "err", err)
	}
	logger.L.Info("events dispatcher ready", "sinks", len(sinks))
	return NewDispatcher(cfg, dlq, sinks...)
}
