// Package transform implements the rule pipeline applied to a URP request
// before the attempt loop and to a URP response afterward (spec §4.J).
package transform

import (
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// Phase is which side of the attempt loop a Rule applies to.
type Phase string

const (
	PhaseRequest  Phase = "request"
	PhaseResponse Phase = "response"
)

// Rule binds a transform id to its enablement, phase, and model scope.
type Rule struct {
	TransformID string
	Enabled     bool
	Phase       Phase
	Models      []string // glob patterns; nil/empty matches every model
	Config      map[string]any
}

func (r Rule) matches(phase Phase, model string) bool {
	return r.Enabled && r.Phase == phase && shared.AnyGlobMatches(r.Models, model)
}

// RequestTransform mutates a URP request in place given a rule's config.
type RequestTransform func(req *urp.Request, cfg map[string]any) error

// ResponseTransform mutates a URP response in place given a rule's config.
type ResponseTransform func(resp *urp.Response, cfg map[string]any) error

// Registry resolves a transform id to its implementation, built once at
// startup the way the teacher resolves named providers into handlers.
type Registry struct {
	request  map[string]RequestTransform
	response map[string]ResponseTransform
}

// NewRegistry builds a Registry seeded with the built-in transforms (spec
// §4.J: "strip_reasoning").
func NewRegistry() *Registry {
	r := &Registry{
		request:  make(map[string]RequestTransform),
		response: make(map[string]ResponseTransform),
	}
	r.RegisterResponse("strip_reasoning", stripReasoning)
	return r
}

// RegisterRequest adds or replaces a named request-phase transform.
func (r *Registry) RegisterRequest(id string, fn RequestTransform) {
	r.request[id] = fn
}

// RegisterResponse adds or replaces a named response-phase transform.
func (r *Registry) RegisterResponse(id string, fn ResponseTransform) {
	r.response[id] = fn
}

// Pipeline is the ordered user-then-provider (request) / provider-then-user
// (response) rule set for one call (spec §4.J).
type Pipeline struct {
	Registry *Registry
	User     []Rule
	Provider []Rule
}

// ApplyRequest runs every enabled, model-matching request-phase rule, user
// rules before provider rules.
func (p Pipeline) ApplyRequest(req *urp.Request) error {
	for _, rule := range joinOrdered(p.User, p.Provider) {
		if !rule.matches(PhaseRequest, req.Model) {
			continue
		}
		fn, ok := p.Registry.request[rule.TransformID]
		if !ok {
			return fmt.Errorf("transform: unknown request transform %q", rule.TransformID)
		}
		if err := fn(req, rule.Config); err != nil {
			return fmt.Errorf("transform: %s: %w", rule.TransformID, err)
		}
	}
	return nil
}

// ApplyResponse runs every enabled, model-matching response-phase rule,
// provider rules before user rules.
func (p Pipeline) ApplyResponse(resp *urp.Response) error {
	for _, rule := range joinOrdered(p.Provider, p.User) {
		if !rule.matches(PhaseResponse, resp.Model) {
			continue
		}
		fn, ok := p.Registry.response[rule.TransformID]
		if !ok {
			return fmt.Errorf("transform: unknown response transform %q", rule.TransformID)
		}
		if err := fn(resp, rule.Config); err != nil {
			return fmt.Errorf("transform: %s: %w", rule.TransformID, err)
		}
	}
	return nil
}

func joinOrdered(first, second []Rule) []Rule {
	out := make([]Rule, 0, len(first)+len(second))
	out = append(out, first...)
	out = append(out, second...)
	return out
}

// stripReasoning removes every Reasoning and ReasoningEncrypted part from
// the response message (spec §4.J).
func stripReasoning(resp *urp.Response, _ map[string]any) error {
	kept := resp.Message.Parts[:0:0]
	for _, part := range resp.Message.Parts {
		switch part.(type) {
		case urp.ReasoningPart, urp.ReasoningEncryptedPart:
			continue
		default:
			kept = append(kept, part)
		}
	}
	resp.Message.Parts = kept
	return nil
}
