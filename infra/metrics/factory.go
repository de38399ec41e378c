package metrics

import (
	coremetrics "github.com/fieldops/dispatchd/core/metrics"
)

// Config selects which sinks a run emits to. All sinks are optional; with
// none enabled the engine runs with a Nop sink.
type Config struct {
	Prometheus bool `json:"prometheus"`

	Influx struct {
		Enabled bool   `json:"enabled"`
		URL     string `json:"url"`
		Token   string `json:"token"`
		Org     string `json:"org"`
		Bucket  string `json:"bucket"`
	} `json:"influx"`
}

// NewSink builds the sink stack described by the config. An unreachable
// InfluxDB degrades to a Nop sink rather than failing the run.
func NewSink(cfg Config) (coremetrics.Sink, error) {
	var sinks []coremetrics.Sink
	if cfg.Prometheus {
		prom, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.Influx.Enabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(
			cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.Nop{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
