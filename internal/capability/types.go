package capability

// AuthLevel describes how strongly a capability requires authorization.
type AuthLevel string

const (
	// AuthLevelNone means the capability is callable anonymously.
	AuthLevelNone AuthLevel = "none"

	// AuthLevelOptional means a token is attached when available but its
	// absence does not block the call.
	AuthLevelOptional AuthLevel = "optional"

	// AuthLevelRequired means the call is rejected unless the caller holds
	// every scope the capability declares.
	AuthLevelRequired AuthLevel = "required"
)

// AuthMetadata is a capability's declared authorization requirement.
type AuthMetadata struct {
	// Level is the declared auth level. When empty, the level is inferred
	// from Scopes (see GetAuthLevel).
	Level AuthLevel `json:"level,omitempty"`

	// Scopes are the OAuth scopes required to invoke the capability.
	Scopes []string `json:"scopes,omitempty"`
}

// Annotations carries optional capability metadata supplied by the backend.
type Annotations struct {
	Auth *AuthMetadata `json:"auth,omitempty"`
}

// Definition represents one invocable backend operation as advertised by the
// discovery endpoint. Every Definition held in the cache has passed
// structural validation; invalid entries are never stored.
type Definition struct {
	Name         string                 `json:"name"`
	Title        string                 `json:"title,omitempty"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	Annotations  *Annotations           `json:"annotations,omitempty"`
}

// AuthMeta returns the capability's auth metadata, or nil when undeclared.
func (d *Definition) AuthMeta() *AuthMetadata {
	if d.Annotations == nil {
		return nil
	}
	return d.Annotations.Auth
}
