package idempotency

import (
	"errors"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// HeaderKey is the request header carrying the caller's key.
const HeaderKey = "Idempotency-Key"

// ErrLost is returned by Complete when the entry was released or expired
// while the request was running.
var ErrLost = errors.New("idempotency entry no longer in progress")

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	Key            string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	PaymentLinkID  string    `dynamodbav:"payment_link_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // e.g., 201
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Completed reports whether the stored response can be replayed.
func (r *Record) Completed() bool {
	return r != nil && r.Status == StatusCompleted && r.ResponseBody != ""
}

func (r *Record) expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
