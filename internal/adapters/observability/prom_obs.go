package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tri2510/carla-vss-bridge/internal/ports"
)

// Level controls which log lines are emitted. Metrics are always recorded.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps the -log-level flag onto a Level. Unknown values fall back
// to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type PromObs struct {
	level    Level
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func NewPromObs(level Level) *PromObs {
	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_ticks_total",
		Help: "Total sampling ticks executed.",
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_publishes_total",
		Help: "Ticks whose signal batch reached the sink.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_ticks_skipped_total",
		Help: "Ticks dropped due to a contained failure.",
	})
	reacquired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_target_reacquired_total",
		Help: "Times the tracked vehicle had to be re-acquired.",
	})
	sinkReconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_sink_reconnects_total",
		Help: "Sink connection attempts after the initial one.",
	})
	speed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_speed_kmh",
		Help: "Last published vehicle speed in km/h.",
	})
	rpm := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_rpm",
		Help: "Last published estimated engine speed.",
	})
	sinkup := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_sink_connected",
		Help: "1 when the sink session is up, 0 otherwise.",
	})

	prometheus.MustRegister(ticks, published, skipped, reacquired, sinkReconnects, speed, rpm, sinkup)

	return &PromObs{
		level: level,
		counters: map[string]prometheus.Counter{
			"bridge_ticks_total":             ticks,
			"bridge_publishes_total":         published,
			"bridge_ticks_skipped_total":     skipped,
			"bridge_target_reacquired_total": reacquired,
			"bridge_sink_reconnects_total":   sinkReconnects,
		},
		gauges: map[string]prometheus.Gauge{
			"bridge_speed_kmh":      speed,
			"bridge_rpm":            rpm,
			"bridge_sink_connected": sinkup,
		},
	}
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	if p.level <= LevelDebug {
		log.Printf("DEBUG: %s%s", msg, formatFields(fields))
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	if p.level <= LevelInfo {
		log.Printf("INFO: %s%s", msg, formatFields(fields))
	}
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	if p.level <= LevelWarn {
		log.Printf("WARN: %s%s", msg, formatFields(fields))
	}
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if p.level <= LevelError {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)
