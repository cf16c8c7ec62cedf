package notification

import "time"

type Kind string

const (
	KindGeneral Kind = "general"
	KindTask    Kind = "task"
	KindShift   Kind = "shift"
	KindNote    Kind = "note"
	KindProject Kind = "project"
)

func ParseKind(s string) Kind {
	switch k := Kind(s); k {
	case KindTask, KindShift, KindNote, KindProject:
		return k
	}
	return KindGeneral
}

// Notification is one in-app inbox entry.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	BatchID   string         `json:"batch_id,omitempty"`
	Kind      Kind           `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Meta      map[string]any `json:"meta,omitempty"`
	Delivered bool           `json:"delivered"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}
