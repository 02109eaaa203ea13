package chat

import (
	"github.com/rs/zerolog"

	"skymessage/internal/pkg/logx"
)

// Relay routes call-signaling events point-to-point by target identity.
// Nothing is persisted and no session state is kept: ring, answer and
// end are forwarded verbatim to every live connection of the target, so
// all of a user's devices ring. When the target has no connections the
// event is dropped silently and the caller's client times the call out.
type Relay struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewRelay wires the relay to the connection registry.
func NewRelay(registry *Registry) *Relay {
	return &Relay{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "relay").Logger(),
	}
}

// deliveredType maps an inbound signaling kind to its outbound form.
func deliveredType(eventType EventType) (EventType, bool) {
	switch eventType {
	case TypeRing:
		return TypeIncomingCall, true
	case TypeAnswer:
		return TypeCallAnswered, true
	case TypeEnd:
		return TypeCallEnded, true
	default:
		return "", false
	}
}

// HandleSignal relays one signaling event from a bound connection. The
// From field is stamped with the sender's identity regardless of what
// the client supplied.
func (r *Relay) HandleSignal(client *Client, eventType EventType, payload SignalPayload) {
	outType, ok := deliveredType(eventType)
	if !ok {
		r.logger.Warn().Str("event_type", string(eventType)).Msg("Unsupported signaling kind")
		return
	}

	payload.From = client.identity

	targets := r.registry.ConnectionsFor(payload.To)
	if len(targets) == 0 {
		r.logger.Debug().
			Str("from", payload.From).
			Str("to", payload.To).
			Str("event_type", string(outType)).
			Msg("Signal target has no live connections, dropping")
		return
	}

	eventBytes, err := EncodeEvent(outType, payload)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(outType)).Msg("Error marshaling signal")
		return
	}

	for _, target := range targets {
		if !target.enqueue(eventBytes) {
			r.logger.Warn().
				Str("conn_id", target.id).
				Str("event_type", string(outType)).
				Msg("Signal delivery failed for connection")
		}
	}
}
