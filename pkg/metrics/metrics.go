// Package metrics exports optimizer diagnostics as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"travelopt/pkg/layer"
	"travelopt/pkg/optimizer"
)

const namespace = "travelopt"

// Recorder accumulates the diagnostics of optimizer runs on its own
// registry.
type Recorder struct {
	registry *prometheus.Registry

	runs        prometheus.Counter
	lines       *prometheus.CounterVec
	segments    *prometheus.CounterVec
	synthesized *prometheus.CounterVec
	removed     *prometheus.CounterVec
	layers      prometheus.Gauge
	travel      *prometheus.GaugeVec
	passes      prometheus.Histogram
	duration    prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of optimized programs.",
		}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "G-code lines read and written.",
		}, []string{"direction"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Segments seen, by kind and whether they were reordered.",
		}, []string{"kind", "reordered"}),
		synthesized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesized_commands_total",
			Help:      "Commands added by regeneration.",
		}, []string{"command"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_travels_total",
			Help:      "Travel moves removed from the input.",
		}, []string{"reason"}),
		layers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layers",
			Help:      "Layers in the last optimized program.",
		}),
		travel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "travel_distance",
			Help:      "Planar travel of the last optimized program, by stage.",
		}, []string{"stage"}),
		passes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layer_twoopt_passes",
			Help:      "2-opt passes run per layer.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time spent optimizing one program.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	r.registry.MustRegister(
		r.runs, r.lines, r.segments, r.synthesized, r.removed,
		r.layers, r.travel, r.passes, r.duration,
	)
	return r
}

// Registry is what the recorder reports to.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Record adds one run.
func (r *Recorder) Record(d optimizer.Diagnostics) {
	r.runs.Inc()
	r.lines.WithLabelValues("in").Add(float64(d.InputLines))
	r.lines.WithLabelValues("out").Add(float64(d.OutputLines))

	r.segments.WithLabelValues(layer.KindExtrude.String(), "true").Add(float64(d.Eligible))
	r.segments.WithLabelValues(layer.KindExtrude.String(), "false").Add(float64(d.ExtrudeSegments - d.Eligible))
	r.segments.WithLabelValues(layer.KindTravel.String(), "false").Add(float64(d.TravelSegments))
	r.segments.WithLabelValues(layer.KindOther.String(), "false").Add(float64(d.OtherSegments))

	r.synthesized.WithLabelValues("travel").Add(float64(d.SynthesizedTravels))
	r.synthesized.WithLabelValues("feed").Add(float64(d.FeedRestores))
	r.synthesized.WithLabelValues("extruder").Add(float64(d.ExtruderResyncs))
	r.synthesized.WithLabelValues("mode").Add(float64(d.ModeRestores))
	r.synthesized.WithLabelValues("tag").Add(float64(d.FeatureTags))

	r.removed.WithLabelValues("superseded").Add(float64(d.DroppedTravels))
	r.removed.WithLabelValues("redundant").Add(float64(d.RedundantRemoved))

	r.layers.Set(float64(d.Layers))
	r.travel.WithLabelValues("naive").Set(d.TravelNaive)
	r.travel.WithLabelValues("nearest").Set(d.TravelNearest)
	r.travel.WithLabelValues("optimized").Set(d.TravelOptimized)

	for _, l := range d.PerLayer {
		if l.Eligible > 0 {
			r.passes.Observe(float64(l.Passes))
		}
	}
	r.duration.Observe(d.Duration.Seconds())
}

// WriteTextfile writes the current metrics in the text exposition format,
// for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
