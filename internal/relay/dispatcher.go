package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/internal/transport"
	"github.com/loqui-chat/loqui/pkg/errors"
	"github.com/loqui-chat/loqui/pkg/metrics"
	"github.com/loqui-chat/loqui/pkg/packet"
)

// Envelope header keys recognized by the dispatcher.
const (
	headerFor         = "for"
	headerGroup       = "group"
	headerMember      = "member"
	headerOldUsername = "old_username"
)

// Dispatcher consumes decoded envelopes from the transport, resolves the
// recipients for each and delivers packets through the registry. OnEvent must
// be invoked sequentially; the relationship cache relies on it.
type Dispatcher struct {
	registry *Registry
	cache    *RelationshipCache
	log      *zap.Logger
}

// NewDispatcher wires a dispatcher to its registry and relationship cache.
func NewDispatcher(registry *Registry, cache *RelationshipCache, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cache:    cache,
		log:      log.With(zap.String("module", "dispatcher")),
	}
}

// OnEvent is the sole entry point, invoked once per envelope pulled off the
// transport, in receipt order.
func (d *Dispatcher) OnEvent(_ context.Context, env *transport.Envelope) {
	if err := env.Validate(); err != nil {
		d.rejectMalformed(env, err)
		return
	}

	kind := resolveKind(env.Directive, env.Topic)
	switch kind {
	case kindContactCreate:
		d.cacheContacts(env, true)
		d.deliver(env, kind, env.Targets)
	case kindContactDelete:
		d.cacheContacts(env, false)
		d.deliver(env, kind, env.Targets)
	case kindContactUpdate:
		d.onContactUpdate(env)
	case kindGroupCreate, kindGroupUpdate:
		d.deliver(env, kind, env.Targets)
	case kindGroupDelete:
		d.cache.RemoveGroup(env.Header(headerGroup))
		d.deliver(env, kind, env.Targets)
	case kindMemberCreate:
		d.cache.AddMember(env.Header(headerGroup), env.Header(headerMember))
		d.deliver(env, kind, d.groupRecipients(env, ""))
	case kindMemberUpdate:
		d.deliver(env, kind, d.groupRecipients(env, ""))
	case kindMemberDelete:
		member := env.Header(headerMember)
		d.cache.RemoveMember(env.Header(headerGroup), member)
		// The removed member still learns of their removal.
		d.deliver(env, kind, d.groupRecipients(env, member))
	case kindMessageCreate, kindMessageUpdate, kindMessageDelete:
		d.deliver(env, kind, d.groupRecipients(env, ""))
	case kindUnknown:
		metrics.EventsDispatched.WithLabelValues(kind.String(), "unmapped").Inc()
		d.log.Warn("dropping event with no handler",
			zap.String("directive", string(env.Directive)),
			zap.String("topic", env.Topic),
			zap.String("origin", env.Origin),
		)
	}
}

// onContactUpdate resolves recipients for contact attribute changes:
// an explicit target list wins; a "for" header names a single recipient
// (contact/status); otherwise the event means "my information changed" and
// fans out to all mutual contacts of the subject, rewriting cache keys first
// when the identity itself changed.
func (d *Dispatcher) onContactUpdate(env *transport.Envelope) {
	if len(env.Targets) > 0 {
		d.deliver(env, kindContactUpdate, env.Targets)
		return
	}
	if topicAttribute(env.Topic) == "status" {
		recipient := env.Header(headerFor)
		if recipient == "" {
			d.deliver(env, kindContactUpdate, nil)
			return
		}
		d.deliver(env, kindContactUpdate, []string{recipient})
		return
	}

	subject := env.Origin
	if old := env.Header(headerOldUsername); old != "" {
		subject = old
		if next := bodyUsername(env); next != "" && next != old {
			d.cache.Rename(old, next)
			subject = next
		}
	}
	d.deliver(env, kindContactUpdate, d.cache.ContactsOf(subject))
}

// groupRecipients resolves recipients for member and message events: the
// explicit target list when present, otherwise the cached members of the
// header-declared group minus the origin. extra, when non-empty, is appended
// to the cache-resolved list.
func (d *Dispatcher) groupRecipients(env *transport.Envelope, extra string) []string {
	if len(env.Targets) > 0 {
		return env.Targets
	}
	members := d.cache.MembersOf(env.Header(headerGroup))
	recipients := make([]string, 0, len(members)+1)
	for _, m := range members {
		if m != env.Origin {
			recipients = append(recipients, m)
		}
	}
	if extra != "" && extra != env.Origin {
		recipients = append(recipients, extra)
	}
	return recipients
}

// cacheContacts maintains mutual-contact edges for contact create/delete
// events. The mutation happens before any later envelope is processed.
func (d *Dispatcher) cacheContacts(env *transport.Envelope, add bool) {
	for _, target := range env.Targets {
		if add {
			d.cache.AddContact(env.Origin, target)
		} else {
			d.cache.RemoveContact(env.Origin, target)
		}
	}
}

// deliver encodes the packet once and sends it to every recipient with a
// live connection. Offline recipients are skipped silently; full send
// buffers are logged, not retried.
func (d *Dispatcher) deliver(env *transport.Envelope, kind eventKind, recipients []string) {
	if len(recipients) == 0 {
		metrics.EventsDispatched.WithLabelValues(kind.String(), "no_recipients").Inc()
		d.log.Debug("event resolved to no recipients",
			zap.String("kind", kind.String()),
			zap.String("origin", env.Origin),
		)
		return
	}

	var headers map[string]string
	var body any
	if env.Payload != nil {
		headers = env.Payload.Headers
		body = env.Payload.Body
	}
	pkt, err := packet.Encode(string(env.Directive), env.Topic, headers, body)
	if err != nil {
		metrics.EventsDispatched.WithLabelValues(kind.String(), "encode_error").Inc()
		d.log.Error("failed to encode packet", zap.String("kind", kind.String()), zap.Error(err))
		return
	}

	for _, recipient := range recipients {
		if recipient == "" {
			continue
		}
		conn, ok := d.registry.Lookup(recipient)
		if !ok {
			continue // recipient offline
		}
		if conn.Deliver(pkt) {
			metrics.PacketsSent.WithLabelValues(string(env.Directive)).Inc()
		} else {
			d.log.Warn("send buffer full, dropping packet",
				zap.String("recipient", recipient),
				zap.String("kind", kind.String()),
			)
		}
	}
	metrics.EventsDispatched.WithLabelValues(kind.String(), "ok").Inc()
}

// rejectMalformed logs a protocol error and, when the origin is resolvable
// in the registry, echoes an ERROR packet to it.
func (d *Dispatcher) rejectMalformed(env *transport.Envelope, cause error) {
	metrics.EventsDispatched.WithLabelValues("malformed", "dropped").Inc()
	d.log.Warn("dropping malformed envelope", zap.Error(cause), zap.String("origin", env.Origin))

	if env.Origin == "" {
		return
	}
	conn, ok := d.registry.Lookup(env.Origin)
	if !ok {
		return
	}
	body := errors.NewBody(errors.CodeMalformedPacket, "malformed envelope", cause.Error())
	pkt, err := packet.Encode(packet.VerbError, "", nil, body)
	if err != nil {
		d.log.Error("failed to encode error packet", zap.Error(err))
		return
	}
	if conn.Deliver(pkt) {
		metrics.PacketsSent.WithLabelValues(packet.VerbError).Inc()
	}
}

// bodyUsername extracts the "username" field from a JSON object body.
func bodyUsername(env *transport.Envelope) string {
	if env.Payload == nil {
		return ""
	}
	obj, ok := env.Payload.Body.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := obj["username"].(string)
	return name
}
