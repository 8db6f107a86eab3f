package event

import (
	"time"

	"github.com/viant/memquota/internal/clock"
)

// Event kinds emitted by the quota layer.
const (
	KindQuotaRefused = "quotaRefused"
	KindHeapRefused  = "heapRefused"
	KindPolicyDenied = "policyDenied"
	KindUsageReport  = "usageReport"
)

// Context carries the origin of an event.
type Context struct {
	Bucket    string `json:"bucket,omitempty"`
	Task      string `json:"task,omitempty"`
	Kind      string `json:"kind"`
	Requested int    `json:"requested,omitempty"`
}

type Event[T any] struct {
	Context   *Context  `json:"context"`
	CreatedAt time.Time `json:"createdAt"`
	Data      T         `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}
