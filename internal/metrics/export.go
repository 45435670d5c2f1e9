package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Exporter ships the collected metrics at the end of an invocation. Lambda
// sandboxes are recycled without notice, so nothing can scrape them.
type Exporter struct {
	gatherer prometheus.Gatherer
	pusher   *push.Pusher
	logger   *zap.Logger
}

// NewExporter creates an Exporter for gatherer. With a Pushgateway URL the
// metrics are pushed under job and grouped by instance; without one they
// are written to the log as a single "metrics" record.
func NewExporter(gatherer prometheus.Gatherer, pushgatewayURL, job, instance string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Exporter{gatherer: gatherer, logger: logger}
	if pushgatewayURL != "" {
		e.pusher = push.New(pushgatewayURL, job).
			Gatherer(gatherer).
			Grouping("instance", instance)
	}
	return e
}

// Export pushes or logs the current metric values.
func (e *Exporter) Export(ctx context.Context) error {
	if e.pusher != nil {
		if err := e.pusher.PushContext(ctx); err != nil {
			return fmt.Errorf("failed to push metrics: %w", err)
		}
		return nil
	}

	samples, err := Samples(e.gatherer)
	if err != nil {
		return err
	}
	e.logger.Info("metrics", zap.Any("metrics", samples))
	return nil
}

// Samples flattens gathered families into name{labels} -> value. Histograms
// contribute their _count and _sum series.
func Samples(gatherer prometheus.Gatherer) (map[string]float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	samples := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := labelString(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				samples[mf.GetName()+labels] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				samples[mf.GetName()+labels] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				samples[mf.GetName()+"_count"+labels] = float64(m.GetHistogram().GetSampleCount())
				samples[mf.GetName()+"_sum"+labels] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return samples, nil
}

func labelString(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
