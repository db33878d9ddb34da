package queue

import (
	"testing"

	"github.com/relex/slog-shipper/base"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryQueue(t *testing.T) {
	q := NewDeliveryQueue(base.NewMetricFactory("testdeliveryqueue_", nil, nil))

	assert.Empty(t, q.QueueFor("/a.log"))
	assert.Nil(t, q.DrainIfFull("/unknown.log", 1))

	q.Append("/a.log", base.LogLine("a\n"))
	assert.Nil(t, q.DrainIfFull("/a.log", 2))
	q.Append("/b.log", base.LogLine("x\n"))
	q.Append("/a.log", base.LogLine("b\n"))
	q.Append("/a.log", base.LogLine("c\n"))
	assert.Equal(t, 4, q.Len())

	batch := q.DrainIfFull("/a.log", 2)
	assert.Equal(t, base.LogBatch{base.LogLine("a\n"), base.LogLine("b\n"), base.LogLine("c\n")}, batch)
	assert.Empty(t, q.QueueFor("/a.log"))
	assert.Equal(t, 1, q.Len())

	q.Append("/a.log", base.LogLine("d\n"))
	keys, batches := q.DrainAll()
	assert.Equal(t, []string{"/a.log", "/b.log"}, keys)
	assert.Equal(t, []base.LogBatch{{base.LogLine("d\n")}, {base.LogLine("x\n")}}, batches)
	assert.Zero(t, q.Len())

	keys, batches = q.DrainAll()
	assert.Empty(t, keys)
	assert.Empty(t, batches)
}

func TestDeliveryQueueBatchScenario(t *testing.T) {
	q := NewDeliveryQueue(base.NewMetricFactory("testdeliveryqueuescenario_", nil, nil))
	var sent []base.LogBatch
	for _, ln := range []string{"a\n", "b\n", "c\n"} {
		q.Append("/f.log", base.LogLine(ln))
		if batch := q.DrainIfFull("/f.log", 2); batch != nil {
			sent = append(sent, batch)
		}
	}
	assert.Equal(t, []base.LogBatch{{base.LogLine("a\n"), base.LogLine("b\n")}}, sent)
	assert.Equal(t, base.LogBatch{base.LogLine("c\n")}, q.QueueFor("/f.log"))
}

func TestDeliveryQueuePrepend(t *testing.T) {
	q := NewDeliveryQueue(base.NewMetricFactory("testdeliveryqueueprepend_", nil, nil))
	q.Prepend("/p.log", nil)
	assert.Zero(t, q.Len())

	q.Append("/p.log", base.LogLine("c\n"))
	q.Prepend("/p.log", base.LogBatch{base.LogLine("a\n"), base.LogLine("b\n")})
	assert.Equal(t, base.LogBatch{base.LogLine("a\n"), base.LogLine("b\n"), base.LogLine("c\n")}, q.QueueFor("/p.log"))
	assert.Equal(t, 3, q.Len())
}
