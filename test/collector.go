// Package test provides a fake collector and end-to-end tests of the shipper
package test

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/util"
)

// collector is a fake TCP log collector which records every newline-terminated line received
type collector struct {
	logger   logger.Logger
	lsnr     net.Listener
	mutex    sync.Mutex
	lines    []string
	conns    []net.Conn
	numConns int
	wg       sync.WaitGroup
}

func startCollector() (*collector, error) {
	lsnr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c := &collector{
		logger: logger.Root().WithFields(logger.Fields{
			defs.LabelComponent: "TestCollector",
			defs.LabelRemote:    lsnr.Addr().String(),
		}),
		lsnr: lsnr,
	}
	c.wg.Add(1)
	go c.accept()
	return c, nil
}

// Port returns the local port the collector listens on
func (c *collector) Port() int {
	return c.lsnr.Addr().(*net.TCPAddr).Port
}

// Lines returns a copy of all lines received so far, without newline
func (c *collector) Lines() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.lines...)
}

// NumConnections returns how many connections have been accepted
func (c *collector) NumConnections() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.numConns
}

// WaitFor polls until the condition on received lines is met or the timeout passes, and returns the last lines seen
func (c *collector) WaitFor(timeout time.Duration, cond func(lines []string) bool) ([]string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		lines := c.Lines()
		if cond(lines) {
			return lines, true
		}
		if time.Now().After(deadline) {
			return lines, false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// DropConnections closes every accepted connection while keeping the listener open
func (c *collector) DropConnections() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, conn := range c.conns {
		conn.Close()
	}
	c.conns = nil
}

// Close stops the listener and all connections, then waits for reader goroutines
func (c *collector) Close() {
	c.lsnr.Close()
	c.DropConnections()
	c.wg.Wait()
}

func (c *collector) accept() {
	defer c.wg.Done()
	for {
		conn, err := c.lsnr.Accept()
		if err != nil {
			if !util.IsNetworkClosed(err) {
				c.logger.Warnf("accept error: %s", err.Error())
			}
			return
		}
		c.mutex.Lock()
		c.conns = append(c.conns, conn)
		c.numConns++
		c.mutex.Unlock()
		c.logger.Infof("accepted %s", conn.RemoteAddr())

		c.wg.Add(1)
		go c.read(conn)
	}
}

func (c *collector) read(conn net.Conn) {
	defer c.wg.Done()
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		c.mutex.Lock()
		c.lines = append(c.lines, scanner.Text())
		c.mutex.Unlock()
	}
	if err := scanner.Err(); err != nil && !util.IsNetworkClosed(err) {
		c.logger.Debugf("read error: %s", err.Error())
	}
}
