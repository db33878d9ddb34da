package harvester

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/slog-shipper/base"
)

type harvesterMetrics struct {
	cyclesTotal          prometheus.Counter
	cycleErrorsTotal     prometheus.Counter
	harvestedLinesTotal  prometheus.Counter
	harvestedBytesTotal  prometheus.Counter
	rotationsTotal       prometheus.Counter
	truncationsTotal     prometheus.Counter
	fileErrorsTotal      prometheus.Counter
	watchedFiles         prometheus.Gauge
	skippedHardLinkTotal prometheus.Counter
}

func newHarvesterMetrics(metricFactory *base.MetricFactory) harvesterMetrics {
	return harvesterMetrics{
		cyclesTotal:          metricFactory.AddOrGetCounter("harvest_cycles_total", "Numbers of harvest cycles started", nil, nil),
		cycleErrorsTotal:     metricFactory.AddOrGetCounter("harvest_cycle_errors_total", "Numbers of harvest cycles ended with non-fatal errors", nil, nil),
		harvestedLinesTotal:  metricFactory.AddOrGetCounter("harvested_lines_total", "Numbers of complete lines read from source files", nil, nil),
		harvestedBytesTotal:  metricFactory.AddOrGetCounter("harvested_bytes_total", "Total length in bytes of complete lines read from source files", nil, nil),
		rotationsTotal:       metricFactory.AddOrGetCounter("rotations_total", "Numbers of tracked inodes observed under a new path", nil, nil),
		truncationsTotal:     metricFactory.AddOrGetCounter("truncations_total", "Numbers of source files found shorter than their recorded offset", nil, nil),
		fileErrorsTotal:      metricFactory.AddOrGetCounter("file_errors_total", "Numbers of source file open, stat or read failures", nil, nil),
		watchedFiles:         metricFactory.AddOrGetGauge("watched_files", "Numbers of source files opened in the last cycle", nil, nil),
		skippedHardLinkTotal: metricFactory.AddOrGetCounter("skipped_links_total", "Numbers of paths skipped because their inode was already harvested in the same cycle", nil, nil),
	}
}

func (metrics *harvesterMetrics) OnLineRead(numBytes int) {
	metrics.harvestedLinesTotal.Inc()
	metrics.harvestedBytesTotal.Add(float64(numBytes))
}
