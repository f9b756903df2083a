// Package domain contains the core business entities for s3gate.
package domain

import "strings"

// PermissionRule is one entry in a credential's ordered authorization list.
// ActionPattern is glob-like over S3 operation names ("Get*", "*").
// ResourcePattern is "*", "<bucket>", "<bucket>/*", or "<bucket>/<prefix>*".
type PermissionRule struct {
	ActionPattern   string `yaml:"action"`
	ResourcePattern string `yaml:"resource"`
}

// Credential is an access-key-id/secret-access-key pair plus an ordered
// list of permission rules. The core treats the whole set as immutable
// per request; it is supplied wholesale by the external config collaborator.
type Credential struct {
	AccessKeyID     string           `yaml:"access_key_id"`
	SecretAccessKey string           `yaml:"secret_access_key"`
	Permissions     []PermissionRule `yaml:"permissions"`
}

// Authorize evaluates action/resource against the credential's ordered rule
// list. First match wins; default deny.
func (c *Credential) Authorize(action, resource string) bool {
	for _, rule := range c.Permissions {
		if globMatch(rule.ActionPattern, action) && resourceMatch(rule.ResourcePattern, resource) {
			return true
		}
	}
	return false
}

// resourceMatch checks a resource pattern ("*", "<bucket>", "<bucket>/*",
// "<bucket>/<prefix>*") against a concrete "<bucket>" or "<bucket>/<key>".
func resourceMatch(pattern, resource string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == resource
	}
	return globMatch(pattern, resource)
}

// globMatch supports a single trailing "*" wildcard, which is the only
// shape S3-style action/resource patterns in this system use.
func globMatch(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == value
}

// CredentialSet is the immutable snapshot of all known credentials, keyed
// by access-key-id, published atomically by the config layer (SPEC_FULL §9,
// "State snapshots under hot reload").
type CredentialSet struct {
	byAccessKey map[string]*Credential
}

// NewCredentialSet builds an immutable snapshot from a credential list.
func NewCredentialSet(creds []Credential) *CredentialSet {
	m := make(map[string]*Credential, len(creds))
	for i := range creds {
		c := creds[i]
		m[c.AccessKeyID] = &c
	}
	return &CredentialSet{byAccessKey: m}
}

// Lookup returns the credential for an access key, or nil if unknown.
func (s *CredentialSet) Lookup(accessKeyID string) *Credential {
	if s == nil {
		return nil
	}
	return s.byAccessKey[accessKeyID]
}
