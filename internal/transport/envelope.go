// Package transport carries change events from the request-handling
// process(es) to the relay over a Redis pub/sub channel. The push side may be
// used concurrently by any number of request handlers; the pull side has
// exactly one consumer, the relay.
package transport

import (
	"fmt"

	"github.com/loqui-chat/loqui/pkg/errors"
	"github.com/loqui-chat/loqui/pkg/json"
)

// Directive is the verb of a change event.
type Directive string

const (
	DirectiveCreate Directive = "CREATE"
	DirectiveUpdate Directive = "UPDATE"
	DirectiveDelete Directive = "DELETE"
)

// Valid reports whether the directive is one of the known verbs.
func (d Directive) Valid() bool {
	switch d {
	case DirectiveCreate, DirectiveUpdate, DirectiveDelete:
		return true
	}
	return false
}

// TargetList is the envelope's target_s field: a single identity, a list of
// identities, or absent. A single identity is normalized to a one-element
// list on decode.
type TargetList []string

// UnmarshalJSON accepts either a JSON string or an array of strings.
// An explicit null means the same as an absent field.
func (t *TargetList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TargetList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("target_s must be a string or list of strings: %w", err)
	}
	*t = TargetList(many)
	return nil
}

// Payload carries the optional headers and body forwarded to recipients.
type Payload struct {
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

// Envelope is a single event crossing the transport.
type Envelope struct {
	Origin    string     `json:"origin"`
	Targets   TargetList `json:"target_s,omitempty"`
	Directive Directive  `json:"directive"`
	Topic     string     `json:"topic"`
	Payload   *Payload   `json:"payload"`
}

// Header returns the named payload header, or "" when absent.
func (e *Envelope) Header(key string) string {
	if e.Payload == nil || e.Payload.Headers == nil {
		return ""
	}
	return e.Payload.Headers[key]
}

// Validate checks the field-presence contract: origin, a known directive,
// topic and payload must all be present.
func (e *Envelope) Validate() error {
	switch {
	case e.Origin == "":
		return fmt.Errorf("%w: missing origin", errors.ErrMalformedPacket)
	case !e.Directive.Valid():
		return fmt.Errorf("%w: unknown directive %q", errors.ErrMalformedPacket, e.Directive)
	case e.Topic == "":
		return fmt.Errorf("%w: missing topic", errors.ErrMalformedPacket)
	case e.Payload == nil:
		return fmt.Errorf("%w: missing payload", errors.ErrMalformedPacket)
	}
	return nil
}
