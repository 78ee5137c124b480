package models

import (
	"strings"
	"time"
)

// ApiClient represents an authenticated API client (admin tooling, LMS integrations)
type ApiClient struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	ApiKey      string            `json:"-"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	LastUsedAt  *time.Time        `json:"last_used_at,omitempty"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Permission is a "resource:action" grant held by an API client
type Permission string

const (
	PermCasesRead        Permission = "cases:read"
	PermCasesWrite       Permission = "cases:write"
	PermSessionsRead     Permission = "sessions:read"
	PermSessionsWrite    Permission = "sessions:write"
	PermEvaluationsRead  Permission = "evaluations:read"
	PermEvaluationsWrite Permission = "evaluations:write"

	PermAll Permission = "*"
)

// Resource returns the part before the colon ("sessions" for "sessions:read")
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// HasPermission reports whether the client holds the required permission.
// "*" grants everything and "sessions:*" grants every "sessions:" permission.
func (c *ApiClient) HasPermission(required Permission) bool {
	if c == nil || !c.IsActive {
		return false
	}

	for _, perm := range c.Permissions {
		switch Permission(perm) {
		case PermAll, required, Permission(required.Resource() + ":*"):
			return true
		}
	}
	return false
}

// MaskedApiKey returns the key prefix for logging
func (c *ApiClient) MaskedApiKey() string {
	return MaskKey(c.ApiKey)
}

// MaskKey returns the first 8 characters of a secret followed by an ellipsis
func MaskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}
