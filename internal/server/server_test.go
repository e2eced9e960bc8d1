package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/util"
	"github.com/berfenger/s2mockrm/pkg/s2"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMaster answers the queries the routes forward to the master actor.
type stubMaster struct {
	healthy bool
}

func (m *stubMaster) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: m.healthy})
	case domain.GetSessionStateRequest:
		ctx.Respond(domain.GetSessionStateResponse{Snapshot: domain.SessionSnapshot{
			State:       "operational",
			SessionID:   "abc",
			ControlType: "FRBC",
		}})
	case domain.GetCapabilitiesRequest:
		name := "Test RM"
		ctx.Respond(domain.GetCapabilitiesResponse{
			Details: &s2.ResourceManagerDetails{
				Header:     s2.NewHeader(),
				ResourceID: "rm-1",
				Name:       &name,
				Roles:      []s2.Role{},
			},
			Messages: []s2.Message{
				&s2.SessionRequest{Header: s2.NewHeader(), Request: s2.SessionRequestReconnect},
			},
		})
	}
}

func newTestServer(t *testing.T, healthy bool) http.Handler {
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &stubMaster{healthy: healthy}
	}))
	s := &Server{
		port:        util.LoadTestConfig().Port,
		rootContext: system.Root,
		masterActor: pid,
	}
	return s.RegisterRoutes()
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := get(newTestServer(t, true), "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	rec = get(newTestServer(t, false), "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestState(t *testing.T) {
	rec := get(newTestServer(t, true), "/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot domain.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "operational", snapshot.State)
	assert.Equal(t, "abc", snapshot.SessionID)
	assert.Equal(t, "FRBC", snapshot.ControlType)
}

func TestCapabilities(t *testing.T) {
	rec := get(newTestServer(t, true), "/capabilities")
	require.Equal(t, http.StatusOK, rec.Code)

	var body CapabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	details, err := s2.Decode(body.Details)
	require.NoError(t, err)
	assert.Equal(t, s2.ID("rm-1"), details.(*s2.ResourceManagerDetails).ResourceID)

	require.Len(t, body.Messages, 1)
	msg, err := s2.Decode(body.Messages[0])
	require.NoError(t, err)
	assert.Equal(t, s2.TypeSessionRequest, msg.Type())
}
