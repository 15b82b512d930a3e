// Package events defines event types and publisher interfaces for resource change events.
package events

// ResourceChangedEvent is emitted after a create, update or delete completes successfully.
type ResourceChangedEvent struct {
	ID        string         `json:"id"`
	Handler   string         `json:"handler"`
	Resource  string         `json:"resource"`
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp string         `json:"timestamp"`
}
