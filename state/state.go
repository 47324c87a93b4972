package state

import (
	"errors"
	"sync"

	"github.com/wfunc/herdparty/replicated"
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
	HandleAction(sender replicated.ClientID, action Action) error
}

// ErrTransitionNotAllowed is returned when a state transition is not registered or its condition fails.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// ErrActionNotAllowed is returned by a state that does not accept an action.
var ErrActionNotAllowed = errors.New("action not allowed in current state")

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

// ChangeState moves to newState through a registered transition. Hooks run outside the lock, so a
// state may read the machine from its own OnExit or OnEnter.
func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	old := sm.currentState
	conditions, exists := sm.transitions[old.GetID()]
	if !exists {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[newState.GetID()]
	if !exists || (condition != nil && !condition()) {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	sm.currentState = newState
	sm.mutex.Unlock()

	old.OnExit()
	newState.OnEnter()
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

// 阶段状态基础结构
type phaseBase struct {
	id string
	c  *Controller
}

func (s *phaseBase) GetID() string { return s.id }

func (s *phaseBase) OnEnter() {}

func (s *phaseBase) OnExit() {}

func (s *phaseBase) OnUpdate() {}

func (s *phaseBase) HandleAction(sender replicated.ClientID, action Action) error {
	return ErrActionNotAllowed
}
