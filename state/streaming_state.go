package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/gamerisk/logger"
	"github.com/wfunc/gamerisk/network"
)

// Command represents a subscriber command that can be unmarshalled from a packet.
type Command struct {
	Type string `json:"type"`
}

// StreamingState 推送进行状态
type StreamingState struct {
	ChannelStateBase
	RefreshEvery time.Duration
	ticksPerPush int

	// 周期推送在频道循环里跑，强制刷新从连接 goroutine 进来，共享字段加锁
	mutex     sync.Mutex
	ticks     int
	pushCount int64
}

// NewStreamingState 创建新的推送状态
func NewStreamingState(ch ChannelContext, refreshEvery time.Duration) *StreamingState {
	ticksPerPush := int(refreshEvery / (100 * time.Millisecond))
	if ticksPerPush < 1 {
		ticksPerPush = 1
	}
	return &StreamingState{
		ChannelStateBase: ChannelStateBase{
			ID:      StateStreaming,
			Channel: ch,
		},
		RefreshEvery: refreshEvery,
		ticksPerPush: ticksPerPush,
	}
}

// HandleCommand handles commands from subscribers.
func (s *StreamingState) HandleCommand(sub Subscriber, cmdData []byte) error {
	var cmd Command
	if err := json.Unmarshal(cmdData, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command data: %w", err)
	}

	if cmd.Type == "refresh" {
		logger.Log.Infof("Subscriber %s forced a refresh on channel %s", sub.GetID(), s.Channel.GetID())
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.push()
		s.ticks = 0
	}
	return nil
}

// OnEnter 进入推送状态
func (s *StreamingState) OnEnter() {
	logger.Log.Infof("频道 %s 进入推送状态，刷新间隔: %v", s.Channel.GetID(), s.RefreshEvery)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.push()
}

// OnExit 退出推送状态
func (s *StreamingState) OnExit() {
	s.mutex.Lock()
	count := s.pushCount
	s.mutex.Unlock()
	logger.Log.Infof("频道 %s 退出推送状态，共推送 %d 次", s.Channel.GetID(), count)
}

// OnUpdate 推送状态更新
func (s *StreamingState) OnUpdate() {
	// 没有订阅者就退回空闲，停掉周期性的全量重算
	if len(s.Channel.GetSubscribers()) == 0 {
		s.Channel.ChangeState(NewIdleState(s.Channel, s.RefreshEvery))
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ticks++
	if s.ticks >= s.ticksPerPush {
		s.ticks = 0
		s.push()
	}
}

// GetID 获取状态ID
func (s *StreamingState) GetID() string {
	return s.ID
}

// push 重算一次视图快照并广播给所有订阅者，调用方持有 s.mutex
func (s *StreamingState) push() {
	data, err := s.Channel.Snapshot()
	if err != nil {
		logger.Log.Errorf("Channel %s snapshot failed: %v", s.Channel.GetID(), err)
		s.notifyError(err)
		return
	}

	if err := s.Channel.Broadcast(network.MsgTypeSnapshot, data); err != nil {
		logger.Log.Errorf("Channel %s broadcast failed: %v", s.Channel.GetID(), err)
		return
	}
	s.pushCount++
}

func (s *StreamingState) notifyError(cause error) {
	errMsg := map[string]string{"error": cause.Error()}
	data, _ := json.Marshal(errMsg)
	s.Channel.Broadcast(network.MsgTypeError, data)
}
