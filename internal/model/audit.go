package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccessLog records one upload or render against the imaging index. Writing
// it is best-effort; a failed audit never fails the operation it describes.
type AccessLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Outcome    string          `db:"outcome" json:"outcome"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string          `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
