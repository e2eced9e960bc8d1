package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/s2mockrm/internal/config"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	SERVER_IDLE_TIMEOUT  = time.Minute
	SERVER_READ_TIMEOUT  = 10 * time.Second
	SERVER_WRITE_TIMEOUT = 30 * time.Second
	// upper bound for a query forwarded to the master actor
	ACTOR_QUERY_TIMEOUT = 5 * time.Second
)

// Server exposes the resource manager's read-only HTTP surface. Every route
// is answered by asking the master actor.
type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *http.Server {
	s := &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		rootContext: rootContext,
		masterActor: masterActor,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  SERVER_IDLE_TIMEOUT,
		ReadTimeout:  SERVER_READ_TIMEOUT,
		WriteTimeout: SERVER_WRITE_TIMEOUT,
	}
}
