package state

import (
	"errors"
	"sync"
	"time"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate()
	GetID() string
	HandleCommand(sub Subscriber, cmdData []byte) error
}

// 频道生命周期只有两个状态
const (
	StateIdle      = "idle"
	StateStreaming = "streaming"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	// 检查是否有转换条件
	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition != nil && !condition() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// 频道状态基础结构
type ChannelStateBase struct {
	ID      string
	Channel ChannelContext
}

func (s *ChannelStateBase) GetID() string {
	return s.ID
}

func (s *ChannelStateBase) OnEnter() {
	// 默认实现
}

func (s *ChannelStateBase) OnExit() {
	// 默认实现
}

func (s *ChannelStateBase) OnUpdate() {
	// 默认实现
}

func (s *ChannelStateBase) HandleCommand(sub Subscriber, cmdData []byte) error {
	// 默认实现，具体状态可以覆盖此方法
	return nil
}

// NewIdleState creates a new idle state.
func NewIdleState(ch ChannelContext, refreshEvery time.Duration) *IdleState {
	return &IdleState{
		ChannelStateBase: ChannelStateBase{
			ID:      StateIdle,
			Channel: ch,
		},
		refreshEvery: refreshEvery,
	}
}

// 空闲状态
type IdleState struct {
	ChannelStateBase
	refreshEvery time.Duration
}

func (s *IdleState) OnUpdate() {
	// 有订阅者才开始推送，无人订阅时不做全量重算
	if len(s.Channel.GetSubscribers()) > 0 {
		s.Channel.ChangeState(NewStreamingState(s.Channel, s.refreshEvery))
	}
}
