package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTestConfig(t, "storage:\n  root: /tmp/s3gate-data\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Lock.Backend)
	require.Equal(t, "sqlite", cfg.Audit.Backend)
	require.True(t, cfg.Audit.Enabled)
	require.Equal(t, "/tmp/s3gate-data", cfg.Storage.Root)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeTestConfig(t, "storage:\n  root: /tmp/s3gate-data\n")
	t.Setenv("S3GATE_SERVER_PORT", "9090")
	t.Setenv("S3GATE_STORAGE_ROOT", "/var/s3gate")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/var/s3gate", cfg.Storage.Root)
}

func TestLoad_CredentialsAndACL(t *testing.T) {
	path := writeTestConfig(t, `
storage:
  root: /tmp/s3gate-data
  default_acl:
    public: true
    public_write: false
    allowed_cidrs:
      - 10.0.0.0/8
  default_cors:
    - allowed_origins: ["*"]
      allowed_methods: ["GET"]
      allowed_headers: ["*"]
auth:
  credentials:
    - access_key_id: AKIDEXAMPLE
      secret_access_key: secretkey
      permissions:
        - action: "*"
          resource: "*"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Auth.Credentials, 1)
	require.Equal(t, "AKIDEXAMPLE", cfg.Auth.Credentials[0].AccessKeyID)

	set := cfg.CredentialSet()
	cred := set.Lookup("AKIDEXAMPLE")
	require.NotNil(t, cred)
	require.Equal(t, "secretkey", cred.SecretAccessKey)
	require.Len(t, cred.Permissions, 1)
	require.Equal(t, "*", cred.Permissions[0].ActionPattern)

	acl := cfg.Storage.DefaultACL.ToDomain()
	require.True(t, acl.Public)
	require.False(t, acl.PublicWrite)
	require.Equal(t, []string{"10.0.0.0/8"}, acl.AllowedCIDRs)

	require.Len(t, cfg.Storage.DefaultCORS, 1)
	rule := cfg.Storage.DefaultCORS[0].ToDomain()
	require.Equal(t, []string{"*"}, rule.AllowedOrigins)
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 0},
		Storage: StorageConfig{Root: "/tmp/data"},
		Lock:    LockConfig{Backend: "memory"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsMissingStorageRoot(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 9000},
		Lock:   LockConfig{Backend: "memory"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLockBackend(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 9000},
		Storage: StorageConfig{Root: "/tmp/data"},
		Lock:    LockConfig{Backend: "carrier-pigeon"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsAuditBackendMissingPath(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 9000},
		Storage: StorageConfig{Root: "/tmp/data"},
		Lock:    LockConfig{Backend: "memory"},
		Audit:   AuditConfig{Enabled: true, Backend: "sqlite", SQLitePath: ""},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsCredentialMissingSecret(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 9000},
		Storage: StorageConfig{Root: "/tmp/data"},
		Lock:    LockConfig{Backend: "memory"},
		Auth:    AuthConfig{Credentials: []CredentialConfig{{AccessKeyID: "AKID"}}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsMalformedCIDR(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 9000},
		Storage: StorageConfig{Root: "/tmp/data", DefaultACL: ACLConfig{AllowedCIDRs: []string{"not-a-cidr"}}},
		Lock:    LockConfig{Backend: "memory"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 9000},
		Storage: StorageConfig{Root: "/tmp/data", DefaultACL: ACLConfig{AllowedCIDRs: []string{"10.0.0.0/8"}}},
		Lock:    LockConfig{Backend: "redis"},
		Audit:   AuditConfig{Enabled: true, Backend: "postgres", PostgresDSN: "postgres://localhost/audit"},
		Auth:    AuthConfig{Credentials: []CredentialConfig{{AccessKeyID: "AKID", SecretAccessKey: "secret"}}},
	}
	require.NoError(t, cfg.Validate())
}
