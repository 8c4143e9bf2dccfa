package capability

import (
	"fmt"
	"strings"
)

// AuthorizationError is returned when a caller's granted scopes do not
// satisfy a capability's declared requirements.
type AuthorizationError struct {
	Tool    string
	Missing []string
	Current []string
}

// Error implements the error interface. The message enumerates both the
// missing and the currently granted scopes so callers can see exactly what
// to request, without exposing any other session state.
func (e *AuthorizationError) Error() string {
	current := "(none)"
	if len(e.Current) > 0 {
		current = strings.Join(e.Current, ", ")
	}
	return fmt.Sprintf("Insufficient OAuth scopes for tool '%s'. Missing: %s Current: %s",
		e.Tool, strings.Join(e.Missing, ", "), current)
}

// GetAuthLevel infers the effective auth level of a capability. An explicit
// level wins; declared scopes without a level imply required; no metadata at
// all means the capability is open.
func GetAuthLevel(meta *AuthMetadata) AuthLevel {
	if meta == nil {
		return AuthLevelNone
	}
	if meta.Level != "" {
		return meta.Level
	}
	if len(meta.Scopes) > 0 {
		return AuthLevelRequired
	}
	return AuthLevelNone
}

// ValidateToolAccess enforces a capability's scope requirements against the
// caller's granted scopes. Only level "required" can reject.
func ValidateToolAccess(def *Definition, grantedScopes []string) error {
	meta := def.AuthMeta()
	if GetAuthLevel(meta) != AuthLevelRequired {
		return nil
	}

	granted := make(map[string]bool, len(grantedScopes))
	for _, s := range grantedScopes {
		granted[s] = true
	}

	var missing []string
	for _, required := range meta.Scopes {
		if !granted[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AuthorizationError{
		Tool:    def.Name,
		Missing: missing,
		Current: grantedScopes,
	}
}

// ExtractRequiredScopes returns the deduplicated union of all scopes
// declared across the given capabilities, in first-seen order. The result
// drives how broad a token the gateway requests during authorization.
func ExtractRequiredScopes(defs []Definition) []string {
	seen := make(map[string]bool)
	scopes := []string{}
	for i := range defs {
		meta := defs[i].AuthMeta()
		if meta == nil {
			continue
		}
		for _, s := range meta.Scopes {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			scopes = append(scopes, s)
		}
	}
	return scopes
}
