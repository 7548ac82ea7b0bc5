// Package access is the policy layer: a fixed registry of pure predicates,
// one per (resource, operation), each resolving to Allow, Deny, or a scoped
// filter that the store adapter merges into its own query.
package access

// DecisionKind discriminates the three decision values. The zero value is
// Deny so an unset decision fails closed.
type DecisionKind int

const (
	DecisionDeny DecisionKind = iota
	DecisionAllow
	DecisionScoped
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionScoped:
		return "scoped"
	default:
		return "deny"
	}
}

// Decision is the three-way outcome of a policy predicate. Filter is only
// meaningful when Kind is DecisionScoped.
type Decision struct {
	Kind   DecisionKind
	Filter Filter
}

// Allow grants unrestricted access to the resource
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// Deny refuses access outright
func Deny() Decision {
	return Decision{Kind: DecisionDeny}
}

// Scoped grants access restricted to documents matching the filter
func Scoped(f Filter) Decision {
	return Decision{Kind: DecisionScoped, Filter: f}
}

// Allowed reports whether the decision grants any access at all
func (d Decision) Allowed() bool {
	return d.Kind != DecisionDeny
}
