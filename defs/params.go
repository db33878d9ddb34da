package defs

import (
	"time"
)

var (
	// HarvesterReadBufferSize is the default size of the buffered reader used to read one source file
	//
	// Lines longer than the buffer are still read in full; the value only affects how many read syscalls are made
	HarvesterReadBufferSize = 64 * 1024

	// SinceDBBusyTimeout is how long SQLite waits on a locked database before failing a statement
	SinceDBBusyTimeout = 5 * time.Second
)

var (
	// TransportConnectionTimeout is for establishing a TCP connection to the collector
	TransportConnectionTimeout = 60 * time.Second

	// TransportSendTimeout is how long a single line write may block before the connection is considered broken
	//
	// The real deadline is refreshed lazily by util.NetConnWrapper and could be up to double of this value
	TransportSendTimeout = 30 * time.Second

	// TransportRetryInterval is the fixed delay between reconnection attempts
	TransportRetryInterval = 30 * time.Second
)

// EnableTestMode turns on test mode with very short timeout and minimal retry delay
func EnableTestMode() {
	TransportConnectionTimeout = 1 * time.Second
	TransportSendTimeout = 1 * time.Second
	TransportRetryInterval = 100 * time.Millisecond
	SinceDBBusyTimeout = 1 * time.Second
}
