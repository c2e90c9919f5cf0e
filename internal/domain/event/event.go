// Package event contains the inbound delivery model passed between layers.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload indicates the delivery body was not valid JSON.
var ErrMalformedPayload = errors.New("malformed payload")

// Label is a single label attached to a tracked item.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InboundEvent is one parsed webhook delivery. It is created per request,
// treated as immutable once parsed, and discarded when the request completes.
type InboundEvent struct {
	DeliveryID  string
	EventType   string // value of the linear-event header
	Action      string // e.g. "create", "update"
	Type        string // e.g. "Issue"
	ItemID      string
	Title       string
	Description string
	Labels      []Label

	// UpdatedLabelIDs is non-nil when the payload carried an explicit
	// updatedLabelIds field, even if empty.
	UpdatedLabelIDs []string

	// HasLabels reports whether the payload carried a labels collection.
	HasLabels bool

	// WebhookTimestamp is the delivery timestamp in milliseconds since epoch.
	WebhookTimestamp int64
}

// FirstLabel returns the name of the first label on the item, or "" if the
// item has none. Routing operates on this value only.
func (e *InboundEvent) FirstLabel() string {
	if len(e.Labels) == 0 {
		return ""
	}
	return e.Labels[0].Name
}

// payload mirrors the webhook JSON body. Pointer fields distinguish absent
// collections from empty ones.
type payload struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Labels      *struct {
			Nodes []Label `json:"nodes"`
		} `json:"labels"`
	} `json:"data"`
	UpdatedLabelIDs  *[]string `json:"updatedLabelIds"`
	WebhookTimestamp int64     `json:"webhookTimestamp"`
}

// Parse decodes a raw delivery body into an InboundEvent. deliveryID and
// eventType come from the transport headers, not the body.
func Parse(deliveryID, eventType string, raw []byte) (InboundEvent, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	e := InboundEvent{
		DeliveryID:       deliveryID,
		EventType:        eventType,
		Action:           p.Action,
		Type:             p.Type,
		ItemID:           p.Data.ID,
		Title:            p.Data.Title,
		Description:      p.Data.Description,
		WebhookTimestamp: p.WebhookTimestamp,
	}
	if p.Data.Labels != nil {
		e.HasLabels = true
		e.Labels = p.Data.Labels.Nodes
	}
	if p.UpdatedLabelIDs != nil {
		ids := make([]string, len(*p.UpdatedLabelIDs))
		copy(ids, *p.UpdatedLabelIDs)
		e.UpdatedLabelIDs = ids
	}
	return e, nil
}
