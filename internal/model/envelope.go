package model

import "encoding/json"

// Envelope is the payload published to Kafka for a single billing record.
type Envelope struct {
	ID   string          `json:"id"`   // envelope ULID
	Type string          `json:"type"` // customer|subscription|charge|invoice
	Data json.RawMessage `json:"data"`
}
