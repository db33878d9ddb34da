package run

import (
	"fmt"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/base/bconfig"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/harvester"
	"github.com/relex/slog-shipper/queue"
	"github.com/relex/slog-shipper/sincedb"
	"github.com/relex/slog-shipper/transport"
	"github.com/relex/slog-shipper/util"
	"github.com/relex/slog-shipper/watcher"
)

// Agent owns every component created for one config: sincedb, file watcher, delivery queue, transport and harvester
type Agent struct {
	logger        logger.Logger
	metricFactory *base.MetricFactory
	stopRequest   *channels.SignalAwaitable
	requestStop   func() bool
	transport     *transport.Transport
	harvester     *harvester.Harvester
}

// NewAgent opens the sincedb and creates all components. Nothing is connected yet.
func NewAgent(parentLogger logger.Logger, config bconfig.AgentConfig, metricPrefix string) (*Agent, error) {
	alogger := parentLogger.WithField(defs.LabelComponent, "Agent")
	metricFactory := base.NewMetricFactory(metricPrefix, nil, nil)

	store, err := sincedb.Open(parentLogger, config.SinceDBPath, config.Retention())
	if err != nil {
		return nil, err
	}
	fileWatcher, err := watcher.NewFileWatcher(parentLogger, config.Exclude)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			alogger.Warnf("error closing sincedb: %s", cerr.Error())
		}
		return nil, fmt.Errorf("exclude: %w", err)
	}

	stopRequest := channels.NewSignalAwaitable()
	tr := transport.NewTransport(parentLogger, transport.Config{
		Address:       config.DestAddress(),
		MaxRetry:      config.MaxConnectionRetry,
		RetryInterval: config.ConnectionRetryInterval,
		Dial:          nil,
	}, stopRequest, metricFactory)

	hv := harvester.NewHarvester(parentLogger, harvester.ParamsFromConfig(config), harvester.Dependencies{
		Store:     store,
		Watcher:   fileWatcher,
		Queue:     queue.NewDeliveryQueue(metricFactory),
		Transport: tr,
	}, metricFactory)

	return &Agent{
		logger:        alogger,
		metricFactory: metricFactory,
		stopRequest:   stopRequest,
		requestStop:   util.NewRunOnce(func() { stopRequest.Signal() }),
		transport:     tr,
		harvester:     hv,
	}, nil
}

// Run connects to the collector and harvests until Stop is called or the collector is unreachable after all retries
//
// The returned error matches base.ErrTransport. Shutdown must be called afterwards in either case.
func (agent *Agent) Run() error {
	if err := agent.transport.Connect(); err != nil {
		return err
	}
	return agent.harvester.Run(agent.stopRequest)
}

// Stop requests Run to return at the next cycle boundary. It may be called more than once and from any goroutine.
func (agent *Agent) Stop() {
	if agent.requestStop() {
		agent.logger.Info("stop requested")
	}
}

// StopRequested returns whether Stop has been called
func (agent *Agent) StopRequested() bool {
	return agent.stopRequest.Peek()
}

// Shutdown flushes pending lines and closes every component, then logs final metrics at debug level
//
// A stop is requested first so that the flush never waits on the reconnection schedule.
func (agent *Agent) Shutdown() {
	agent.Stop()
	agent.harvester.Shutdown()

	metrics, err := agent.metricFactory.DumpMetrics(false)
	if err != nil {
		agent.logger.Warnf("failed to dump metrics: %s", err.Error())
		return
	}
	agent.logger.Debugf("final metrics:\n%s", metrics)
}
