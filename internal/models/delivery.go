package models

import "time"

type Outcome string

const (
	OutcomeHandled Outcome = "handled"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFailed  Outcome = "failed"
)

// Delivery records one inbound webhook delivery for bookkeeping.
type Delivery struct {
	EventID    string        `json:"event_id"`
	Kind       string        `json:"kind"`
	RetryNum   int           `json:"retry_num"`
	Outcome    Outcome       `json:"outcome"`
	ReceivedAt time.Time     `json:"received_at"`
	Duration   time.Duration `json:"duration"`
}
