package domain

import "context"

// Entitlements holds one permission per phase, as granted by the plan.
type Entitlements struct {
	Evaluate bool `json:"evaluate"`
	Design   bool `json:"design"`
	Generate bool `json:"generate"`
	Evolve   bool `json:"evolve"`
}

// Allows reports whether the entitlements grant phase p.
func (e Entitlements) Allows(p PhaseID) bool {
	switch p {
	case PhaseEvaluate:
		return e.Evaluate
	case PhaseDesign:
		return e.Design
	case PhaseGenerate:
		return e.Generate
	case PhaseEvolve:
		return e.Evolve
	}
	return false
}

// Subscription is the subscription service's view of a user.
type Subscription struct {
	Plan             string       `json:"plan"`
	Entitlements     Entitlements `json:"entitlements"`
	StripeCustomerID string       `json:"stripe_customer_id,omitempty"`
}

// SubscriptionSource loads the subscription of a user.
type SubscriptionSource interface {
	Subscription(ctx context.Context, userID string) (Subscription, error)
}

// EntitlementGate decides whether a user may open a phase.
type EntitlementGate interface {
	CheckEntitlement(ctx context.Context, userID string, phase PhaseID) (bool, error)
}
