package audit

import "github.com/ppiankov/journeywatch/internal/model"

// AuditEntry is one line in the hash-chained JSONL audit log.
// Details is a struct rather than map[string]any so json.Marshal field
// order, and therefore the chain hash, is reproducible.
type AuditEntry struct {
	Timestamp    string              `json:"ts"`
	UserID       string              `json:"user_id"`
	Action       string              `json:"action"`
	ResourceID   string              `json:"resource_id,omitempty"`
	ResourceType string              `json:"resource_type,omitempty"`
	Details      *model.AuditDetails `json:"details,omitempty"`
	IPAddress    string              `json:"ip_address,omitempty"`
	UserAgent    string              `json:"user_agent,omitempty"`
	PrevHash     string              `json:"prev_hash"`
}

// JourneyID returns the journey an entry belongs to, if any.
func (e *AuditEntry) JourneyID() string {
	if e.ResourceType == model.ResourceJourney {
		return e.ResourceID
	}
	if e.Details != nil {
		return e.Details.JourneyID
	}
	return ""
}

func entryFromEvent(ev model.AuditEvent) AuditEntry {
	e := AuditEntry{
		UserID:       ev.UserID,
		Action:       string(ev.Action),
		ResourceID:   ev.ResourceID,
		ResourceType: ev.ResourceType,
		Details:      ev.Details,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
	}
	if !ev.Timestamp.IsZero() {
		e.Timestamp = ev.Timestamp.UTC().Format(TimestampFormat)
	}
	return e
}
