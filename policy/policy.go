package policy

import (
	"context"
)

// Admission modes recognised by the allocator facade.
const (
	ModeAllow = "allow" // admit requests, subject to quota (default)
	ModeDeny  = "deny"  // block every allocation
)

// Policy represents the admission settings for the current execution context.
// It is evaluated before any quota reservation, so it can never leave the
// ledger in a half-reserved state.
//
//   - Mode controls the high-level behaviour (allow / deny).
//   - AllowList, BlockList filter by bucket name regardless of Mode.
//
// A nil *Policy means "admit everything subject to quota" and is therefore
// the zero-cost default.
type Policy struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// IsAllowed evaluates Mode and the AllowList / BlockList for the named
// bucket. BlockList has priority; an empty AllowList admits every bucket.
func (p *Policy) IsAllowed(bucket string) bool {
	if p == nil {
		return true
	}
	if p.Mode == ModeDeny {
		return false
	}
	for _, b := range p.BlockList {
		if bucket == b {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if bucket == a {
			return true
		}
	}
	return false
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy, or nil when none was set.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
