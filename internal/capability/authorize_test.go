package capability

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestGetAuthLevel(t *testing.T) {
	tests := []struct {
		name string
		meta *AuthMetadata
		want AuthLevel
	}{
		{"nil metadata", nil, AuthLevelNone},
		{"empty metadata", &AuthMetadata{}, AuthLevelNone},
		{"explicit level", &AuthMetadata{Level: AuthLevelOptional, Scopes: []string{"x"}}, AuthLevelOptional},
		{"explicit none with scopes", &AuthMetadata{Level: AuthLevelNone, Scopes: []string{"x"}}, AuthLevelNone},
		{"scopes imply required", &AuthMetadata{Scopes: []string{"x"}}, AuthLevelRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetAuthLevel(tc.meta); got != tc.want {
				t.Errorf("GetAuthLevel() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateToolAccess(t *testing.T) {
	required := &Definition{
		Name: "delete_post",
		Annotations: &Annotations{Auth: &AuthMetadata{
			Scopes: []string{"content:write", "content:delete"},
		}},
	}

	if err := ValidateToolAccess(required, []string{"content:write", "content:delete", "extra"}); err != nil {
		t.Errorf("expected access granted, got %v", err)
	}

	err := ValidateToolAccess(required, []string{"profile", "content:read"})
	if err == nil {
		t.Fatal("expected authorization error")
	}
	msg := err.Error()
	for _, want := range []string{"Insufficient OAuth scopes", "content:write", "content:delete", "Missing:", "Current:", "profile", "content:read"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}

	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatal("expected *AuthorizationError")
	}
	if !reflect.DeepEqual(authErr.Missing, []string{"content:write", "content:delete"}) {
		t.Errorf("unexpected missing scopes: %v", authErr.Missing)
	}
}

func TestValidateToolAccessNoScopes(t *testing.T) {
	err := ValidateToolAccess(&Definition{Name: "open"}, nil)
	if err != nil {
		t.Errorf("open tool should never reject, got %v", err)
	}

	optional := &Definition{
		Name: "maybe",
		Annotations: &Annotations{Auth: &AuthMetadata{
			Level:  AuthLevelOptional,
			Scopes: []string{"content:write"},
		}},
	}
	if err := ValidateToolAccess(optional, nil); err != nil {
		t.Errorf("optional tool should never reject, got %v", err)
	}
}

func TestExtractRequiredScopes(t *testing.T) {
	defs := []Definition{
		{Name: "a", Annotations: &Annotations{Auth: &AuthMetadata{Scopes: []string{"content:read", "content:write"}}}},
		{Name: "b"},
		{Name: "c", Annotations: &Annotations{Auth: &AuthMetadata{Scopes: []string{"content:read"}}}},
		{Name: "d", Annotations: &Annotations{Auth: &AuthMetadata{Scopes: []string{"admin"}}}},
	}
	got := ExtractRequiredScopes(defs)
	want := []string{"content:read", "content:write", "admin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractRequiredScopes() = %v, want %v", got, want)
	}

	if got := ExtractRequiredScopes(nil); len(got) != 0 {
		t.Errorf("expected empty slice for no capabilities, got %v", got)
	}
}
