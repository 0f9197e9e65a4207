package network

const (
	MsgTypeHeartbeat   = 1
	MsgTypeSubscribe   = 101
	MsgTypeUnsubscribe = 102
	MsgTypeRefresh     = 201
	MsgTypeSnapshot    = 301
	MsgTypeError       = 401
)
