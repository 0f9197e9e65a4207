// channel/channel.go
package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/gamerisk/session"
	"github.com/wfunc/gamerisk/state"
	"github.com/wfunc/gamerisk/view"
)

// ChannelStatus 表示频道的推送状态
type ChannelStatus int

const (
	StatusIdle ChannelStatus = iota
	StatusStreaming
)

// snapshotTimeout bounds a single view recompute.
const snapshotTimeout = 10 * time.Second

// SnapshotPayload is the wire body of a snapshot push.
type SnapshotPayload struct {
	Rule      string       `json:"rule"`
	Generated time.Time    `json:"generated"`
	Count     int          `json:"count"`
	Entries   []view.Entry `json:"entries"`
}

// Channel 是一条规则的实时推送频道，ID 就是规则名
type Channel struct {
	ID             string
	MaxSubscribers int
	Status         ChannelStatus
	Subscribers    map[string]*session.Session // sessionID -> session
	StateMachine   state.StateMachine
	CreatedAt      time.Time
	materializer   *view.Materializer
	broadcaster    Broadcaster
	observer       Observer
	refreshEvery   time.Duration
	statusMutex    sync.RWMutex
	subMutex       sync.RWMutex
	ticker         *time.Ticker
	closeChan      chan bool
}

// NewChannel 创建一个新频道
func NewChannel(rule string, maxSubscribers int, refreshEvery time.Duration, materializer *view.Materializer, broadcaster Broadcaster, observer Observer) *Channel {
	ch := &Channel{
		ID:             rule,
		MaxSubscribers: maxSubscribers,
		Status:         StatusIdle,
		Subscribers:    make(map[string]*session.Session),
		CreatedAt:      time.Now(),
		materializer:   materializer,
		broadcaster:    broadcaster,
		observer:       observer,
		refreshEvery:   refreshEvery,
		closeChan:      make(chan bool),
	}

	// 初始化状态机，将频道自身作为上下文传入
	initialState := state.NewIdleState(ch, refreshEvery)
	ch.StateMachine = state.NewBaseStateMachine(initialState)

	// 启动频道心跳
	ch.ticker = time.NewTicker(100 * time.Millisecond)
	go ch.loop()

	return ch
}

// --- 实现 state.ChannelContext 接口 ---

// GetID 返回频道ID，也就是规则名
func (c *Channel) GetID() string {
	return c.ID
}

// GetMaxSubscribers returns the subscriber capacity of the channel.
func (c *Channel) GetMaxSubscribers() int {
	return c.MaxSubscribers
}

// GetSubscribers 获取频道中的所有订阅者，返回的map值为 state.Subscriber 接口
func (c *Channel) GetSubscribers() map[string]state.Subscriber {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()

	// 返回副本以避免并发修改
	subscribers := make(map[string]state.Subscriber)
	for k, v := range c.Subscribers {
		subscribers[k] = v // session.Session 实现了 state.Subscriber 接口
	}
	return subscribers
}

// ChangeState 改变频道的状态机状态
func (c *Channel) ChangeState(newState state.State) error {
	return c.StateMachine.ChangeState(newState)
}

// Broadcast sends a packet to all subscribers of the channel.
func (c *Channel) Broadcast(msgID uint16, data []byte) error {
	return c.broadcaster.BroadcastToChannel(c.ID, msgID, data)
}

// Snapshot 重算一次视图并编码为推送包体
func (c *Channel) Snapshot() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	started := time.Now()
	entries, err := c.materializer.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if c.observer != nil {
		c.observer.ChannelRefreshed(c.ID, len(entries), time.Since(started))
	}

	payload := SnapshotPayload{
		Rule:      c.ID,
		Generated: time.Now().UTC(),
		Count:     len(entries),
		Entries:   entries,
	}
	return json.Marshal(payload)
}

// --- 频道核心逻辑 ---

// Subscribe 把一个会话加入频道
func (c *Channel) Subscribe(s *session.Session) bool {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()

	if len(c.Subscribers) >= c.MaxSubscribers {
		return false
	}

	c.Subscribers[s.ID] = s
	s.SetChannel(c.ID)
	return true
}

// Unsubscribe 把一个会话移出频道
func (c *Channel) Unsubscribe(sessionID string) {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()

	if sub, exists := c.Subscribers[sessionID]; exists {
		sub.SetChannel("")
		delete(c.Subscribers, sessionID)
	}
}

// GetSubscriber 获取单个订阅者
func (c *Channel) GetSubscriber(sessionID string) (*session.Session, bool) {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()

	sub, exists := c.Subscribers[sessionID]
	return sub, exists
}

// GetSessions returns a slice of all subscribed sessions (thread-safe).
func (c *Channel) GetSessions() []*session.Session {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(c.Subscribers))
	for _, s := range c.Subscribers {
		sessions = append(sessions, s)
	}
	return sessions
}

// SubscriberCount 当前订阅人数
func (c *Channel) SubscriberCount() int {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	return len(c.Subscribers)
}

// SetStatus 设置频道的推送状态
func (c *Channel) SetStatus(status ChannelStatus) {
	c.statusMutex.Lock()
	defer c.statusMutex.Unlock()
	c.Status = status
}

// GetStatus 获取频道的推送状态
func (c *Channel) GetStatus() ChannelStatus {
	c.statusMutex.RLock()
	defer c.statusMutex.RUnlock()
	return c.Status
}

// loop 是频道的主循环，定时驱动状态更新
func (c *Channel) loop() {
	for {
		select {
		case <-c.ticker.C:
			c.Update()
		case <-c.closeChan:
			c.ticker.Stop()
			return
		}
	}
}

// Update 由主循环调用，驱动状态机更新
func (c *Channel) Update() {
	if c.StateMachine == nil {
		return
	}
	currentState := c.StateMachine.GetCurrentState()
	if currentState == nil {
		return
	}
	currentState.OnUpdate()

	// OnUpdate 里可能切换了状态，这里同步业务状态
	switch c.StateMachine.GetCurrentState().GetID() {
	case state.StateIdle:
		c.SetStatus(StatusIdle)
	case state.StateStreaming:
		c.SetStatus(StatusStreaming)
	}
}

// Close 关闭频道，停止主循环
func (c *Channel) Close() {
	close(c.closeChan)
}

// --- 频道管理器 ---

// Manager 管理所有规则频道
type Manager struct {
	channels map[string]*Channel
	mutex    sync.RWMutex
}

// NewChannelManager 创建一个新的频道管理器
func NewChannelManager() *Manager {
	return &Manager{
		channels: make(map[string]*Channel),
	}
}

// CreateChannel 为一条规则创建频道并注册
func (m *Manager) CreateChannel(rule string, maxSubscribers int, refreshEvery time.Duration, materializer *view.Materializer, broadcaster Broadcaster, observer Observer) *Channel {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ch := NewChannel(rule, maxSubscribers, refreshEvery, materializer, broadcaster, observer)
	m.channels[rule] = ch
	return ch
}

// RemoveChannel 注销并关闭一个频道
func (m *Manager) RemoveChannel(rule string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if ch, exists := m.channels[rule]; exists {
		ch.Close()
		delete(m.channels, rule)
	}
}

// GetChannel 按规则名取频道
func (m *Manager) GetChannel(rule string) (*Channel, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ch, exists := m.channels[rule]
	return ch, exists
}

// Channels returns a snapshot of all registered channels.
func (m *Manager) Channels() []*Channel {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		result = append(result, ch)
	}
	return result
}

// StreamingCount 正在推送的频道数
func (m *Manager) StreamingCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, ch := range m.channels {
		if ch.GetStatus() == StatusStreaming {
			count++
		}
	}
	return count
}

// SubscriberCount 所有频道的订阅者总数
func (m *Manager) SubscriberCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, ch := range m.channels {
		count += ch.SubscriberCount()
	}
	return count
}

// CloseAll 关闭所有频道
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for rule, ch := range m.channels {
		ch.Close()
		delete(m.channels, rule)
	}
}
