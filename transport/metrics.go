package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/util"
)

type transportMetrics struct {
	state                 prometheus.Gauge
	connectAttemptsTotal  prometheus.Counter
	networkErrorsTotal    prometheus.Counter
	nonNetworkErrorsTotal prometheus.Counter
	sentLinesTotal        prometheus.Counter
	sentBytesTotal        prometheus.Counter
	resentBatchesTotal    prometheus.Counter
}

func newTransportMetrics(metricFactory *base.MetricFactory) transportMetrics {
	factory := metricFactory.NewSubFactory("transport_", nil, nil)
	metrics := transportMetrics{
		state:                 factory.AddOrGetGauge("state", "Current state: 0=disconnected, 1=connecting, 2=connected, 3=failed", nil, nil),
		connectAttemptsTotal:  factory.AddOrGetCounter("connect_attempts_total", "Numbers of connection attempts", nil, nil),
		networkErrorsTotal:    factory.AddOrGetCounter("network_errors_total", "Numbers of network errors", nil, nil),
		nonNetworkErrorsTotal: factory.AddOrGetCounter("nonnetwork_errors_total", "Numbers of non-network errors, e.g. invalid address", nil, nil),
		sentLinesTotal:        factory.AddOrGetCounter("sent_lines_total", "Numbers of lines written to collector", nil, nil),
		sentBytesTotal:        factory.AddOrGetCounter("sent_bytes_total", "Total length in bytes of lines written to collector", nil, nil),
		resentBatchesTotal:    factory.AddOrGetCounter("resent_batches_total", "Numbers of batches resumed after reconnection", nil, nil),
	}
	metrics.state.Set(float64(StateDisconnected))
	return metrics
}

func (metrics *transportMetrics) OnStateChanged(state State) {
	metrics.state.Set(float64(state))
}

func (metrics *transportMetrics) OnError(err error) {
	if err != nil && util.IsNetworkError(err) {
		metrics.networkErrorsTotal.Inc()
	} else {
		metrics.nonNetworkErrorsTotal.Inc()
	}
}

func (metrics *transportMetrics) OnSent(numBytes int) {
	metrics.sentLinesTotal.Inc()
	metrics.sentBytesTotal.Add(float64(numBytes))
}
