// Package transport sends lines to the collector over one persistent TCP connection
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/util"
)

// DialFunc opens a connection to the collector
type DialFunc func(address string, timeout time.Duration) (net.Conn, error)

// Config defines the collector endpoint and reconnection behavior
type Config struct {
	Address       string
	MaxRetry      int           // retries after the first failed attempt
	RetryInterval time.Duration // fixed delay before each retry
	Dial          DialFunc      // nil for plain TCP
}

// Transport is a resilient line sender with explicit connection state
//
// Lines are written in order, each as a separate write. When a write fails, Transport reconnects and resumes from
// the failed line, so no line is skipped; lines written before the failure are never resent.
//
// Once stopRequest is signaled, a broken connection gets exactly one immediate reconnection attempt. This keeps the
// shutdown flush from waiting on the retry schedule.
//
// Transport is not safe for concurrent use.
type Transport struct {
	logger      logger.Logger
	config      Config
	stopRequest channels.Awaitable
	conn        net.Conn
	state       State
	metrics     transportMetrics
}

// SendError reports a batch which could not be fully delivered
type SendError struct {
	Unsent base.LogBatch // lines not written, starting with the failed one
	Cause  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%d lines unsent: %s", len(e.Unsent), e.Cause.Error())
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// NewTransport creates a Transport in Disconnected state
func NewTransport(parentLogger logger.Logger, config Config, stopRequest channels.Awaitable, metricFactory *base.MetricFactory) *Transport {
	if config.Dial == nil {
		config.Dial = dialTCP
	}
	return &Transport{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "Transport",
			defs.LabelRemote:    config.Address,
		}),
		config:      config,
		stopRequest: stopRequest,
		conn:        nil,
		state:       StateDisconnected,
		metrics:     newTransportMetrics(metricFactory),
	}
}

// State returns the current connection state
func (t *Transport) State() State {
	return t.state
}

// Connect (re)establishes the connection, retrying up to MaxRetry times with RetryInterval in between
//
// Exhausting retries moves Transport to Failed and returns an error matching base.ErrTransport
func (t *Transport) Connect() error {
	t.closeConn()
	t.setState(StateConnecting)

	outcome, lastErr := t.attempt()
	retries := 0
	for outcome == RetryableFailure {
		if retries >= t.config.MaxRetry {
			outcome = FatalFailure
			break
		}
		if t.stopRequest.Peek() || t.stopRequest.Wait(t.config.RetryInterval) {
			t.logger.Info("stop requested, giving up reconnection")
			outcome = FatalFailure
			break
		}
		retries++
		t.logger.Infof("trying to reconnect (%d/%d)...", retries, t.config.MaxRetry)
		outcome, lastErr = t.attempt()
	}

	switch outcome {
	case Connected:
		if retries > 0 {
			t.logger.Infof("reconnected after %d retries", retries)
		} else {
			t.logger.Info("connected")
		}
		t.setState(StateConnected)
		return nil
	default:
		t.setState(StateFailed)
		t.logger.Errorf("failed to connect after %d retries: %s", retries, lastErr.Error())
		return base.NewTransportError(fmt.Errorf("connect to %s after %d retries: %w", t.config.Address, retries, lastErr))
	}
}

// Send writes all lines of the batch in order, reconnecting as needed
//
// On failure the returned *SendError holds the unsent lines and wraps an error matching base.ErrTransport
func (t *Transport) Send(batch base.LogBatch) error {
	if len(batch) == 0 {
		return nil
	}
	if t.state != StateConnected {
		if err := t.Connect(); err != nil {
			return &SendError{Unsent: batch, Cause: err}
		}
	}
	next := 0
	for next < len(batch) {
		line := batch[next]
		if _, err := t.conn.Write(line); err != nil {
			t.logger.Warnf("failed to send line %d/%d: %s", next+1, len(batch), err.Error())
			t.metrics.OnError(err)
			if cerr := t.Connect(); cerr != nil {
				return &SendError{Unsent: batch[next:], Cause: cerr}
			}
			t.metrics.resentBatchesTotal.Inc()
			t.logger.Infof("resuming batch from line %d/%d", next+1, len(batch))
			continue
		}
		t.logger.Debugf("[%s] is sent", line.String())
		t.metrics.OnSent(len(line))
		next++
	}
	return nil
}

// Close releases the connection. It may be called more than once.
func (t *Transport) Close() {
	if t.closeConn() {
		t.logger.Info("connection closed")
	}
	if t.state != StateFailed {
		t.setState(StateDisconnected)
	}
}

func (t *Transport) attempt() (Outcome, error) {
	t.metrics.connectAttemptsTotal.Inc()
	t.logger.Infof("connecting to %s", t.config.Address)
	conn, err := t.config.Dial(t.config.Address, defs.TransportConnectionTimeout)
	if err != nil {
		t.logger.Warnf("failed to connect: %s", err.Error())
		t.metrics.OnError(err)
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			return FatalFailure, err
		}
		return RetryableFailure, err
	}
	t.conn = util.WrapNetConn(conn, defs.TransportSendTimeout)
	return Connected, nil
}

func (t *Transport) closeConn() bool {
	if t.conn == nil {
		return false
	}
	if err := t.conn.Close(); err != nil && !util.IsNetworkClosed(err) {
		t.logger.Warnf("error closing connection: %s", err.Error())
	}
	t.conn = nil
	return true
}

func (t *Transport) setState(state State) {
	if t.state != state {
		t.logger.Debugf("state %s -> %s", t.state, state)
	}
	t.state = state
	t.metrics.OnStateChanged(state)
}

func dialTCP(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}
