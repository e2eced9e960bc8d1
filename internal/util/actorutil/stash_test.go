package actorutil

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hold struct{}
type release struct{}
type query struct{ n int }

// gate stashes queries while held and answers them, in order, once released.
type gate struct {
	behavior actor.Behavior
	stash    *Stash
}

func newGate() *gate {
	g := &gate{behavior: actor.NewBehavior(), stash: &Stash{}}
	g.behavior.Become(g.open)
	return g
}

func (g *gate) Receive(ctx actor.Context) {
	g.behavior.Receive(ctx)
}

func (g *gate) open(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case hold:
		g.behavior.BecomeStacked(g.held)
	case query:
		ctx.Respond(msg.n)
	}
}

func (g *gate) held(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case release:
		g.behavior.UnbecomeStacked()
		g.stash.UnstashAll(ctx)
	case query:
		g.stash.Stash(ctx, msg)
	}
}

func TestStashKeepsOrderAndSender(t *testing.T) {
	system := actor.NewActorSystem()
	defer system.Shutdown()

	g := newGate()
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return g }))

	system.Root.Send(pid, hold{})
	futures := make([]*actor.Future, 3)
	for i := range futures {
		futures[i] = system.Root.RequestFuture(pid, query{n: i}, 2*time.Second)
	}

	// mailbox order puts the release behind the queries
	system.Root.Send(pid, release{})

	for i, f := range futures {
		res, err := f.Result()
		require.NoError(t, err)
		assert.Equal(t, i, res)
	}
	assert.Equal(t, 0, g.stash.Len())
}
