package kerberos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing keytab",
			cfg:     Config{Principal: "user@REALM", Realm: "REALM", ConfigPath: "/etc/krb5.conf"},
			wantErr: "KeytabPath is required",
		},
		{
			name:    "missing principal",
			cfg:     Config{KeytabPath: "/etc/datamine.keytab", Realm: "REALM", ConfigPath: "/etc/krb5.conf"},
			wantErr: "Principal is required",
		},
		{
			name:    "missing realm",
			cfg:     Config{KeytabPath: "/etc/datamine.keytab", Principal: "user@REALM", ConfigPath: "/etc/krb5.conf"},
			wantErr: "Realm is required",
		},
		{
			name:    "missing config path",
			cfg:     Config{KeytabPath: "/etc/datamine.keytab", Principal: "user@REALM", Realm: "REALM"},
			wantErr: "ConfigPath is required",
		},
		{
			name: "all fields present",
			cfg: Config{
				KeytabPath: "/etc/datamine.keytab",
				Principal:  "user@REALM",
				Realm:      "REALM",
				ConfigPath: "/etc/krb5.conf",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseServerURL(t *testing.T) {
	t.Run("extracts and strips kerberos params", func(t *testing.T) {
		serverUrl := "https://analytics.example.com/dashboard/datamine2?kerberos_keytab=/etc/datamine.keytab&kerberos_principal=user@REALM&kerberos_realm=REALM&kerberos_config=/etc/krb5.conf&kerberos_service_spn=HTTP/analytics.example.com&timezone=UTC"

		cfg, cleanURL, err := parseServerURL(serverUrl)
		require.NoError(t, err)

		assert.Equal(t, "/etc/datamine.keytab", cfg.KeytabPath)
		assert.Equal(t, "user@REALM", cfg.Principal)
		assert.Equal(t, "REALM", cfg.Realm)
		assert.Equal(t, "/etc/krb5.conf", cfg.ConfigPath)
		assert.Equal(t, "HTTP/analytics.example.com", cfg.ServiceSPN)

		// Kerberos params should be stripped
		assert.NotContains(t, cleanURL, "kerberos_keytab")
		assert.NotContains(t, cleanURL, "kerberos_principal")
		assert.NotContains(t, cleanURL, "kerberos_realm")
		assert.NotContains(t, cleanURL, "kerberos_config")
		assert.NotContains(t, cleanURL, "kerberos_service_spn")
		// Non-kerberos params should be preserved
		assert.Contains(t, cleanURL, "timezone=UTC")
		assert.Contains(t, cleanURL, "https://analytics.example.com/dashboard/datamine2")
	})

	t.Run("empty kerberos params", func(t *testing.T) {
		serverUrl := "https://analytics.example.com/dashboard/datamine2?timezone=UTC"

		cfg, cleanURL, err := parseServerURL(serverUrl)
		require.NoError(t, err)

		assert.Empty(t, cfg.KeytabPath)
		assert.Empty(t, cfg.Principal)
		assert.Contains(t, cleanURL, "timezone=UTC")
	})

	t.Run("invalid server URL", func(t *testing.T) {
		_, _, err := parseServerURL("://bad")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server URL")
	})
}

func TestNewRequestOption_MissingConfig(t *testing.T) {
	t.Run("fails on missing keytab", func(t *testing.T) {
		_, _, err := NewRequestOption(Config{
			Principal:  "user@REALM",
			Realm:      "REALM",
			ConfigPath: "/etc/krb5.conf",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KeytabPath is required")
	})

	t.Run("fails on missing principal", func(t *testing.T) {
		_, _, err := NewRequestOption(Config{
			KeytabPath: "/etc/datamine.keytab",
			Realm:      "REALM",
			ConfigPath: "/etc/krb5.conf",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Principal is required")
	})
}

func TestNewRequestOption_BadKeytab(t *testing.T) {
	_, _, err := NewRequestOption(Config{
		KeytabPath: "/nonexistent/datamine.keytab",
		Principal:  "user@REALM",
		Realm:      "REALM",
		ConfigPath: "/etc/krb5.conf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load keytab")
}

func TestSPNDefault(t *testing.T) {
	cfg := Config{ServiceSPN: ""}
	// When ServiceSPN is empty, the request option should default to "HTTP/<hostname>"
	// We can't test the actual SPNEGO header without a KDC, but we verify
	// that an empty ServiceSPN passes validation (it's optional).
	assert.Empty(t, cfg.ServiceSPN, "empty ServiceSPN should be valid; defaulting happens at request time")
}

func TestNewClient_ValidationError(t *testing.T) {
	// URL with Kerberos params but missing required fields
	serverUrl := "https://analytics.example.com/dashboard/datamine2?kerberos_keytab=&kerberos_principal=user@REALM&kerberos_realm=REALM&kerberos_config=/etc/krb5.conf"

	_, _, err := NewClient(serverUrl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KeytabPath is required")
}
