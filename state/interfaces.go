// state/interfaces.go
package state

// Subscriber defines the minimal interface for a connected viewer that a state needs to interact with.
type Subscriber interface {
	GetID() string
}

// ChannelContext defines the interface that a feed channel must implement to be driven by the state machine.
// This breaks the import cycle between channel and state.
type ChannelContext interface {
	GetID() string
	GetSubscribers() map[string]Subscriber
	GetMaxSubscribers() int
	ChangeState(newState State) error
	Broadcast(msgID uint16, data []byte) error
	Snapshot() ([]byte, error)
}
