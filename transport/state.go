package transport

// State is the connection state of Transport
type State int32

// Transport states
//
//	Disconnected -> Connecting -> Connected
//	                          \-> Failed (retries exhausted)
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one connection attempt or of the whole connect procedure
type Outcome int

// Connect outcomes
const (
	Connected        Outcome = iota // connection established
	RetryableFailure                // attempt failed, another attempt may succeed
	FatalFailure                    // retries exhausted or aborted by stop request
)

func (o Outcome) String() string {
	switch o {
	case Connected:
		return "connected"
	case RetryableFailure:
		return "retryable-failure"
	case FatalFailure:
		return "fatal-failure"
	default:
		return "unknown"
	}
}
