// Package queue holds pending lines per source until they fill a batch
package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/slog-shipper/base"
	"golang.org/x/exp/slices"
)

// DeliveryQueue keeps an ordered sequence of pending lines for each source key (path)
//
// A missing key is the same as an empty sequence. DeliveryQueue is not safe for concurrent use.
type DeliveryQueue struct {
	pending     map[string]base.LogBatch
	queuedLines prometheus.Gauge
}

// NewDeliveryQueue creates an empty DeliveryQueue
func NewDeliveryQueue(metricFactory *base.MetricFactory) *DeliveryQueue {
	return &DeliveryQueue{
		pending:     make(map[string]base.LogBatch),
		queuedLines: metricFactory.AddOrGetGauge("queued_lines", "Numbers of lines read but not yet sent", nil, nil),
	}
}

// QueueFor returns the pending lines of the key, creating an empty sequence if absent
func (q *DeliveryQueue) QueueFor(key string) base.LogBatch {
	batch, ok := q.pending[key]
	if !ok {
		batch = make(base.LogBatch, 0, 16)
		q.pending[key] = batch
	}
	return batch
}

// Append adds a line to the end of the key's sequence
func (q *DeliveryQueue) Append(key string, line base.LogLine) {
	q.pending[key] = append(q.QueueFor(key), line)
	q.queuedLines.Inc()
}

// Prepend puts lines back in front of the key's sequence, e.g. the unsent part of a failed batch
func (q *DeliveryQueue) Prepend(key string, lines base.LogBatch) {
	if len(lines) == 0 {
		return
	}
	merged := make(base.LogBatch, 0, len(lines)+len(q.pending[key]))
	merged = append(merged, lines...)
	merged = append(merged, q.pending[key]...)
	q.pending[key] = merged
	q.queuedLines.Add(float64(len(lines)))
}

// DrainIfFull returns and clears the key's sequence once it holds at least batchSize lines, otherwise nil
func (q *DeliveryQueue) DrainIfFull(key string, batchSize int) base.LogBatch {
	batch := q.pending[key]
	if len(batch) < batchSize {
		return nil
	}
	return q.drain(key)
}

// DrainAll clears every non-empty sequence and returns them keyed by source, in sorted key order
func (q *DeliveryQueue) DrainAll() ([]string, []base.LogBatch) {
	keys := make([]string, 0, len(q.pending))
	for key, batch := range q.pending {
		if len(batch) > 0 {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	batches := make([]base.LogBatch, 0, len(keys))
	for _, key := range keys {
		batches = append(batches, q.drain(key))
	}
	return keys, batches
}

// Len returns the total number of pending lines
func (q *DeliveryQueue) Len() int {
	total := 0
	for _, batch := range q.pending {
		total += len(batch)
	}
	return total
}

func (q *DeliveryQueue) drain(key string) base.LogBatch {
	batch := q.pending[key]
	delete(q.pending, key)
	q.queuedLines.Sub(float64(len(batch)))
	return batch
}
