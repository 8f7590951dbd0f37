package sponge

import (
	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/constraint"
)

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
	FLOOR_ENTER
	FLOOR_EXIT
	LINK_YIELD
	LINK_FAILURE
	ON_INSTABILITY
	ON_DIVERGENCE
)

type pairKey struct {
	voxelA int
	voxelB int
}

// makePairKey creates a normalized pair key with consistent ordering
func makePairKey(voxelA, voxelB int) pairKey {
	if voxelB < voxelA {
		voxelA, voxelB = voxelB, voxelA
	}

	return pairKey{voxelA: voxelA, voxelB: voxelB}
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Collision events, between two voxels that are not linked
type CollisionEnterEvent struct {
	VoxelA int
	VoxelB int
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	VoxelA int
	VoxelB int
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	VoxelA int
	VoxelB int
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// Floor events
type FloorEnterEvent struct {
	Voxel int
}

func (e FloorEnterEvent) Type() EventType { return FLOOR_ENTER }

type FloorExitEvent struct {
	Voxel int
}

func (e FloorExitEvent) Type() EventType { return FLOOR_EXIT }

// Link state events, emitted once when the state is first reached
type LinkYieldEvent struct {
	Link   int
	Strain float64
}

func (e LinkYieldEvent) Type() EventType { return LINK_YIELD }

type LinkFailureEvent struct {
	Link   int
	Strain float64
}

func (e LinkFailureEvent) Type() EventType { return LINK_FAILURE }

// InstabilityEvent is emitted when a step exceeds the stable time step by the instability factor
type InstabilityEvent struct {
	Step        int
	Dt          float64
	Recommended float64
}

func (e InstabilityEvent) Type() EventType { return ON_INSTABILITY }

type DivergenceEvent struct {
	Step int
	Time float64
}

func (e DivergenceEvent) Type() EventType { return ON_DIVERGENCE }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Collision tracking for Enter/Stay/Exit detection
	previousActivePairs map[pairKey]bool
	currentActivePairs  map[pairKey]bool

	floorStates map[int]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]bool),
		currentActivePairs:  make(map[pairKey]bool),
		floorStates:         make(map[int]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	if e.listeners == nil {
		*e = NewEvents()
	}
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// forget drops the tracked pairs and floor states, after voxel indices changed
func (e *Events) forget() {
	clear(e.previousActivePairs)
	clear(e.currentActivePairs)
	clear(e.floorStates)
}

// recordContacts marks the touching contacts of this step as active pairs
func (e *Events) recordContacts(contacts []*constraint.Contact) {
	for _, c := range contacts {
		if c.IsTouching() {
			e.currentActivePairs[makePairKey(c.A, c.B)] = true
		}
	}
}

func (e *Events) emitLinkYield(link int, strain float64) {
	e.buffer = append(e.buffer, LinkYieldEvent{Link: link, Strain: strain})
}

func (e *Events) emitLinkFailure(link int, strain float64) {
	e.buffer = append(e.buffer, LinkFailureEvent{Link: link, Strain: strain})
}

func (e *Events) emitInstability(step int, dt, recommended float64) {
	e.buffer = append(e.buffer, InstabilityEvent{Step: step, Dt: dt, Recommended: recommended})
}

func (e *Events) emitDivergence(step int, time float64) {
	e.buffer = append(e.buffer, DivergenceEvent{Step: step, Time: time})
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit
func (e *Events) processCollisionEvents() {
	for pair := range e.currentActivePairs {
		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionStayEvent{VoxelA: pair.voxelA, VoxelB: pair.voxelB})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{VoxelA: pair.voxelA, VoxelB: pair.voxelB})
		}
	}

	for pair := range e.previousActivePairs {
		if !e.currentActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionExitEvent{VoxelA: pair.voxelA, VoxelB: pair.voxelB})
		}
	}

	// Swap for next step and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func (e *Events) processFloorEvents(voxels []*actor.Voxel) {
	for i, v := range voxels {
		tracked := e.floorStates[i]
		onFloor := v.IsOnFloor()

		if !tracked && onFloor {
			e.buffer = append(e.buffer, FloorEnterEvent{Voxel: i})
		} else if tracked && !onFloor {
			e.buffer = append(e.buffer, FloorExitEvent{Voxel: i})
		}

		if onFloor {
			e.floorStates[i] = true
		} else {
			delete(e.floorStates, i)
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
