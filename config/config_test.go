package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com/files/")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 50, cfg.MaxUploadMB)
	assert.Equal(t, "https://cdn.example.com/files", cfg.PublicBaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_OAuthProviders(t *testing.T) {
	t.Setenv("OAUTH_PROVIDERS", "GitHub, ")
	t.Setenv("OAUTH_GITHUB_CLIENT_ID", "abc")
	t.Setenv("OAUTH_GITHUB_SCOPES", "read:user, user:email")

	cfg := Load()

	p, ok := cfg.OAuthProviders["github"]
	assert.True(t, ok)
	assert.Equal(t, "abc", p.ClientID)
	assert.Equal(t, []string{"read:user", "user:email"}, p.Scopes)
	assert.Len(t, cfg.OAuthProviders, 1)
}
