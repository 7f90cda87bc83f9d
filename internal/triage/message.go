package triage

import (
	"net/mail"
	"strings"
	"time"
)

// Message is an inbound message as supplied by the ingestion boundary.
// The engine treats it as read-only and keys it by (GrantID, SourceMessageID).
type Message struct {
	GrantID         string    `json:"grant_id"`
	SourceMessageID string    `json:"source_message_id"`
	Sender          string    `json:"sender"`
	SenderDomain    string    `json:"sender_domain"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	ReceivedAt      time.Time `json:"received_at"`
}

// Validate rejects messages the pipeline cannot key or classify.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.GrantID) == "" {
		return &ValidationError{Field: "grant_id", Reason: "is required"}
	}
	if strings.TrimSpace(m.SourceMessageID) == "" {
		return &ValidationError{Field: "source_message_id", Reason: "is required"}
	}
	if strings.TrimSpace(m.Sender) == "" {
		return &ValidationError{Field: "sender", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(m.Sender); err != nil {
		return &ValidationError{Field: "sender", Reason: "is not an address"}
	}
	return nil
}

// Normalize reduces the sender to a bare lowercase address and fills the
// sender domain and received time when they are absent.
func (m *Message) Normalize() {
	if addr, err := mail.ParseAddress(m.Sender); err == nil {
		m.Sender = addr.Address
	}
	m.Sender = strings.ToLower(strings.TrimSpace(m.Sender))

	if m.SenderDomain == "" {
		if _, domain, ok := strings.Cut(m.Sender, "@"); ok {
			m.SenderDomain = domain
		}
	}
	m.SenderDomain = strings.ToLower(m.SenderDomain)

	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
}

// LocalPart returns the portion of the sender address before the '@'.
func (m *Message) LocalPart() string {
	local, _, _ := strings.Cut(m.Sender, "@")
	return local
}

// RuleKey returns the rule-store key for the message sender, namespaced by grant.
func (m *Message) RuleKey() RuleKey {
	return RuleKey{
		Namespace: m.GrantID,
		Sender:    strings.ToLower(strings.TrimSpace(m.Sender)),
	}
}
