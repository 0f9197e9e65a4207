// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/gamerisk/channel"
	"github.com/wfunc/gamerisk/session"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToChannel(channelID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// 基于规则频道的广播器
type FeedBroadcaster struct {
	channelManager *channel.Manager
	sessionManager *session.Manager
}

func NewFeedBroadcaster(channelManager *channel.Manager, sessionManager *session.Manager) *FeedBroadcaster {
	return &FeedBroadcaster{
		channelManager: channelManager,
		sessionManager: sessionManager,
	}
}

func (b *FeedBroadcaster) BroadcastToChannel(channelID string, msgID uint16, data []byte) error {
	ch, exists := b.channelManager.GetChannel(channelID)
	if !exists {
		return ErrChannelNotFound
	}

	// Get a thread-safe copy of the sessions
	sessions := ch.GetSessions()

	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接交给读循环的清理逻辑处理
			continue
		}
	}

	return nil
}

// BroadcastToAll 推给所有在线会话，订阅与否都收
func (b *FeedBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}
