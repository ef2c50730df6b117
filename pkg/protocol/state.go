package protocol

// State is the protocol phase of a connection. The numeric values of Status
// and Login match the next-state field of the handshake.
type State int32

const (
	StateHandshaking State = 0
	StateStatus      State = 1
	StateLogin       State = 2
	StateClosed      State = -1
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
