package relay

import (
	"strings"

	"github.com/loqui-chat/loqui/internal/transport"
)

// eventKind is the decoded (directive, topic) pair. Decoding happens once
// per envelope; dispatch matches kinds exhaustively.
type eventKind int

const (
	kindUnknown eventKind = iota
	kindContactCreate
	kindContactUpdate
	kindContactDelete
	kindGroupCreate
	kindGroupUpdate
	kindGroupDelete
	kindMemberCreate
	kindMemberUpdate
	kindMemberDelete
	kindMessageCreate
	kindMessageUpdate
	kindMessageDelete
)

var kindNames = map[eventKind]string{
	kindUnknown:       "unknown",
	kindContactCreate: "contact-create",
	kindContactUpdate: "contact-update",
	kindContactDelete: "contact-delete",
	kindGroupCreate:   "group-create",
	kindGroupUpdate:   "group-update",
	kindGroupDelete:   "group-delete",
	kindMemberCreate:  "member-create",
	kindMemberUpdate:  "member-update",
	kindMemberDelete:  "member-delete",
	kindMessageCreate: "message-create",
	kindMessageUpdate: "message-update",
	kindMessageDelete: "message-delete",
}

func (k eventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// resolveKind maps a directive and topic path to an event kind. The topic's
// first segment names the resource; any remaining segments name an attribute
// (e.g. "contact/status") and do not affect the kind.
func resolveKind(directive transport.Directive, topic string) eventKind {
	resource, _, _ := strings.Cut(topic, "/")

	var base eventKind
	switch resource {
	case "contact":
		base = kindContactCreate
	case "group":
		base = kindGroupCreate
	case "member":
		base = kindMemberCreate
	case "message":
		base = kindMessageCreate
	default:
		return kindUnknown
	}

	switch directive {
	case transport.DirectiveCreate:
		return base
	case transport.DirectiveUpdate:
		return base + 1
	case transport.DirectiveDelete:
		return base + 2
	default:
		return kindUnknown
	}
}

// topicAttribute returns the attribute part of a topic path, e.g. "status"
// for "contact/status", or "" when the topic is a bare resource.
func topicAttribute(topic string) string {
	_, attr, _ := strings.Cut(topic, "/")
	return attr
}
