package domain

import "fmt"

// SessionCommandRequest

type SessionCommandRequest interface {
	ActorRequest
	SessionCommand() string
}

type SessionCommandRequestMixIn struct {
	ActorRequestMixIn
}

func (r SessionCommandRequestMixIn) SessionCommand() string {
	return fmt.Sprintf("%T", r)
}

// SessionCommandResponse

type SessionCommandResponse interface {
	ActorResponse
	SessionCommandResponse() string
}

type SessionCommandResponseMixIn struct {
	ActorResponseMixIn
}

func (r SessionCommandResponseMixIn) SessionCommandResponse() string {
	return fmt.Sprintf("%T", r)
}

// Session commands

// TerminateSessionRequest asks the RM to end the session with the CEM by
// sending SessionRequest TERMINATE. Without Reconnect the transport stays
// closed afterwards.
type TerminateSessionRequest struct {
	SessionCommandRequestMixIn
	Reason    string
	Reconnect bool
}

type TerminateSessionResponse struct {
	SessionCommandResponseMixIn
	// false when there was no live session to terminate
	Terminated bool
}

// PublishForecastRequest makes the session send a fresh forecast if it is
// operational.
type PublishForecastRequest struct {
	SessionCommandRequestMixIn
}

type PublishForecastResponse struct {
	SessionCommandResponseMixIn
	Sent bool
}

// ensure interface compliance
var _ SessionCommandRequest = (*TerminateSessionRequest)(nil)
var _ SessionCommandRequest = (*PublishForecastRequest)(nil)
var _ SessionCommandResponse = (*TerminateSessionResponse)(nil)
var _ SessionCommandResponse = (*PublishForecastResponse)(nil)
