package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogValidate(t *testing.T) {
	t.Run("built-in catalog", func(t *testing.T) {
		out, err := execute(t, "catalog", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "hubspot")
		assert.Contains(t, out, "providers ok")
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("providers:\n  - slug: jira\n    name: Jira\n    auth_type: api_key\n"), 0o600))

		out, err := execute(t, "catalog", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "jira")
		assert.Contains(t, out, "1 providers ok")
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("providers:\n  - slug: Bad Slug\n    name: x\n"), 0o600))

		_, err := execute(t, "catalog", "validate", path)
		assert.ErrorContains(t, err, "invalid slug")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "catalog", "validate", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"onboarding start needs a UUID", []string{"onboarding", "start", "acme"}, "invalid organization ID"},
		{"org delete needs a UUID", []string{"org", "delete", "acme"}, "invalid organization ID"},
		{"migrate down needs a positive count", []string{"migrate", "down", "0"}, "invalid step count"},
		{"migrate down rejects text", []string{"migrate", "down", "all"}, "invalid step count"},
		{"onboarding start needs one argument", []string{"onboarding", "start"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestOrgCreateValidatesFlags(t *testing.T) {
	_, err := execute(t, "org", "create", "--name", "Acme", "--slug", "acme", "--owner-id", "user_1", "--owner-email", "not-an-email")
	assert.Error(t, err)
}
