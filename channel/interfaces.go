package channel

import "time"

// Broadcaster defines the interface for pushing packets to a channel's subscribers.
// This is defined here to break the import cycle between channel and broadcast.
type Broadcaster interface {
	BroadcastToChannel(channel string, msgID uint16, data []byte) error
}

// Observer receives per-refresh feed statistics. Defined here for the
// same reason as Broadcaster: the monitor package implements it without
// the channel package importing the monitor.
type Observer interface {
	ChannelRefreshed(rule string, flagged int, took time.Duration)
}
