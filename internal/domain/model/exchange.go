package model

import "time"

type ExchangeStatus string

const (
	ExchangeOK      ExchangeStatus = "ok"
	ExchangeTimeout ExchangeStatus = "timeout"
	ExchangeFailed  ExchangeStatus = "failed"
)

// Exchange is one /chat round trip kept for auditing.
type Exchange struct {
	ID           string
	SessionID    string
	Message      string
	Reply        string
	DetectedName string
	Provider     string
	Model        string
	Status       ExchangeStatus
	LatencyMs    int
	CreatedAt    time.Time
}
