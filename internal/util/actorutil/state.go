package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

type ActorWithStates struct {
	Behavior actor.Behavior
	names    []string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.Behavior.Become(state.Receive)
	s.names = append(s.names[:0], state.Name())
}

func (s *ActorWithStates) BecomeStacked(state ActorState) {
	s.Behavior.BecomeStacked(state.Receive)
	s.names = append(s.names, state.Name())
}

func (s *ActorWithStates) UnbecomeStacked() {
	s.Behavior.UnbecomeStacked()
	if len(s.names) > 0 {
		s.names = s.names[:len(s.names)-1]
	}
}

// StateName is the name of the state currently receiving messages.
func (s *ActorWithStates) StateName() string {
	if len(s.names) == 0 {
		return ""
	}
	return s.names[len(s.names)-1]
}
