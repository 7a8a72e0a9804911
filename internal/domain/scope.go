package domain

// ScopePublic is the sentinel scope value marking a resource as visible to
// every authenticated user. Any other scope value is the owning user's ID.
const ScopePublic = "public"

// IsPublicScope reports whether the given scope is the public sentinel.
func IsPublicScope(scope string) bool {
	return scope == ScopePublic
}
