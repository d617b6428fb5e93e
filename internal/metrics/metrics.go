package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionCounter returns the number of live sessions in the session store.
type SessionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Auth modes used as the "mode" label.
const (
	ModeInteractive = "interactive"
	ModeEmbedded    = "embedded"
	ModeAdmin       = "admin"
)

type outcomeKey struct {
	kind   string
	mode   string
	result string
}

// Collector is a prometheus.Collector that gathers studio metrics at scrape time.
// Outcome counters are recorded by the handlers; everything else is queried
// from providers when scraped.
type Collector struct {
	sessions  SessionCounter
	startTime time.Time

	mu       sync.Mutex
	outcomes map[outcomeKey]uint64

	// Metric descriptors.
	authAttemptsDesc *prometheus.Desc
	exportsDesc      *prometheus.Desc
	synthesesDesc    *prometheus.Desc
	uploadsDesc      *prometheus.Desc
	sessionsDesc     *prometheus.Desc
	uptimeDesc       *prometheus.Desc
}

// NewCollector creates a new metrics collector. sessions may be nil if the
// store cannot count its entries.
func NewCollector(sessions SessionCounter, startTime time.Time) *Collector {
	return &Collector{
		sessions:  sessions,
		startTime: startTime,
		outcomes:  make(map[outcomeKey]uint64),

		authAttemptsDesc: prometheus.NewDesc(
			"promptstudio_auth_attempts_total",
			"Authentication attempts by mode and result reason",
			[]string{"mode", "result"}, nil,
		),
		exportsDesc: prometheus.NewDesc(
			"promptstudio_exports_total",
			"Prompt exports by result reason",
			[]string{"result"}, nil,
		),
		synthesesDesc: prometheus.NewDesc(
			"promptstudio_syntheses_total",
			"Text-to-speech requests by result reason",
			[]string{"result"}, nil,
		),
		uploadsDesc: prometheus.NewDesc(
			"promptstudio_uploads_total",
			"Audio uploads by result reason",
			[]string{"result"}, nil,
		),
		sessionsDesc: prometheus.NewDesc(
			"promptstudio_sessions",
			"Number of sessions held by the session store",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"promptstudio_uptime_seconds",
			"Seconds since the prompt studio process started",
			nil, nil,
		),
	}
}

// ResultOK is the result label of a successful operation. Failures use their
// reason code.
const ResultOK = "ok"

// RecordAuth counts one authentication attempt.
func (c *Collector) RecordAuth(mode, result string) {
	c.inc(outcomeKey{kind: "auth", mode: mode, result: result})
}

// RecordExport counts one export attempt.
func (c *Collector) RecordExport(result string) {
	c.inc(outcomeKey{kind: "export", result: result})
}

// RecordSynthesis counts one synthesis attempt.
func (c *Collector) RecordSynthesis(result string) {
	c.inc(outcomeKey{kind: "tts", result: result})
}

// RecordUpload counts one upload attempt.
func (c *Collector) RecordUpload(result string) {
	c.inc(outcomeKey{kind: "upload", result: result})
}

func (c *Collector) inc(k outcomeKey) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.outcomes[k]++
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.authAttemptsDesc
	ch <- c.exportsDesc
	ch <- c.synthesesDesc
	ch <- c.uploadsDesc
	ch <- c.sessionsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mu.Lock()
	snapshot := make(map[outcomeKey]uint64, len(c.outcomes))
	for k, v := range c.outcomes {
		snapshot[k] = v
	}
	c.mu.Unlock()

	for k, v := range snapshot {
		switch k.kind {
		case "auth":
			ch <- prometheus.MustNewConstMetric(c.authAttemptsDesc, prometheus.CounterValue, float64(v), k.mode, k.result)
		case "export":
			ch <- prometheus.MustNewConstMetric(c.exportsDesc, prometheus.CounterValue, float64(v), k.result)
		case "tts":
			ch <- prometheus.MustNewConstMetric(c.synthesesDesc, prometheus.CounterValue, float64(v), k.result)
		case "upload":
			ch <- prometheus.MustNewConstMetric(c.uploadsDesc, prometheus.CounterValue, float64(v), k.result)
		}
	}

	// Live sessions gauge.
	if c.sessions != nil {
		count, err := c.sessions.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count sessions", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.sessionsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
