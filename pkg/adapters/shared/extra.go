// Package shared holds the small pieces every wire-shape adapter needs in
// common: the unknown-field ingress split, model-glob matching, and the
// reasoning-effort suffix resolver.
package shared

import (
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/config"
)

// ErrUnknownField is returned under config.PolicyReject when the ingress
// body carries a top-level key absent from knownKeys.
type ErrUnknownField struct {
	Field string
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown_field: %s", e.Field)
}

// SplitExtra partitions body's top-level keys into known and extra, applying
// policy, the way original_source's urp::decode::openai_chat::split_extra
// separates a serde_json::Map into typed fields plus a leftover bag.
//
// Under PolicyReject, any non-empty extras yield ErrUnknownField naming the
// first offending key encountered in body's key order is not guaranteed
// (Go maps have no stable order); callers that need a deterministic error
// message should sort the keys themselves before calling.
func SplitExtra(body map[string]any, knownKeys map[string]struct{}, policy config.UnknownFieldPolicy) (extra map[string]any, err error) {
	extra = make(map[string]any)
	for k, v := range body {
		if _, known := knownKeys[k]; known {
			continue
		}
		switch policy {
		case config.PolicyReject:
			return nil, &ErrUnknownField{Field: k}
		case config.PolicyIgnore:
			continue
		case config.PolicyPreserve:
			extra[k] = v
		default:
			extra[k] = v
		}
	}
	return extra, nil
}

// MergeExtra re-emits extra's entries into dst, for encode-side passthrough
// under a preserve policy. Keys already present in dst are not overwritten.
func MergeExtra(dst map[string]any, extra map[string]any) {
	for k, v := range extra {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}
