package util

import (
	"net"
	"time"
)

// NetConnWrapper wraps a connection with a write deadline refreshed infrequently in trade of accuracy
//
// The real timeout of a write could be anything from the specified value to double of it. Reads are untouched,
// since the shipper never reads from the collector.
type NetConnWrapper struct {
	net.Conn
	writeTimeoutMin time.Duration
	writeTimeoutMax time.Duration
	writeDeadline   time.Time
}

// WrapNetConn creates a NetConnWrapper for given network connection; zero writeTimeout means no deadline
func WrapNetConn(conn net.Conn, writeTimeout time.Duration) *NetConnWrapper {
	return &NetConnWrapper{
		Conn:            conn,
		writeTimeoutMin: writeTimeout,
		writeTimeoutMax: writeTimeout * 2,
		writeDeadline:   time.Time{},
	}
}

// WriteDeadline returns the current write deadline
func (cw *NetConnWrapper) WriteDeadline() time.Time {
	return cw.writeDeadline
}

func (cw *NetConnWrapper) Write(p []byte) (int, error) {
	if cw.writeTimeoutMin > 0 {
		now := time.Now()
		if cw.writeDeadline.Sub(now) < cw.writeTimeoutMin {
			nextDeadline := now.Add(cw.writeTimeoutMax)
			if err := cw.Conn.SetWriteDeadline(nextDeadline); err != nil {
				return 0, err
			}
			cw.writeDeadline = nextDeadline
		}
	}
	return cw.Conn.Write(p)
}
