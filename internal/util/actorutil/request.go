package actorutil

import (
	"github.com/berfenger/s2mockrm/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

// Replier routes the answer to a request: to its ReplyTo ref when one was
// set, otherwise to the sender.
type Replier interface {
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

type replier struct {
	ref *actor.PID
}

func ForRequest(r domain.ActorRequest) Replier {
	return replier{ref: (*actor.PID)(r.ReplyTo())}
}

// Respond drops resp when nobody waits for it.
func (r replier) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if to := r.ReplyTo(ctx); to != nil {
		ctx.Send(to, resp)
	}
}

func (r replier) ReplyTo(ctx actor.Context) *actor.PID {
	if r.ref != nil {
		return r.ref
	}
	return ctx.Sender()
}
