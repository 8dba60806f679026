package infrastructure_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"ecselfservice/internal/infrastructure"
)

func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func fixturePath(t *testing.T, relPath string) string {
	t.Helper()
	root, err := projectRoot()
	if err != nil {
		t.Fatalf("locate project root failed: %v", err)
	}
	return filepath.Join(root, relPath)
}

func parseYAML(t *testing.T, relPath string) *yaml.Node {
	t.Helper()
	contents, err := os.ReadFile(fixturePath(t, relPath))
	if err != nil {
		t.Fatalf("read %s failed: %v", relPath, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		t.Fatalf("unmarshal %s failed: %v", relPath, err)
	}
	if len(doc.Content) == 0 {
		t.Fatalf("%s has empty yaml document", relPath)
	}
	return doc.Content[0]
}

func mappingValue(t *testing.T, node *yaml.Node, key string) *yaml.Node {
	t.Helper()
	if node == nil || node.Kind != yaml.MappingNode {
		t.Fatalf("expected mapping node while reading key %q", key)
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	t.Fatalf("missing key %q", key)
	return nil
}

func sequenceHasScalar(node *yaml.Node, want string) bool {
	if node == nil || node.Kind != yaml.SequenceNode {
		return false
	}
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode && item.Value == want {
			return true
		}
	}
	return false
}

func TestTeamsFileStructure(t *testing.T) {
	root := parseYAML(t, infrastructure.DefaultTeamsFile)
	writer := mappingValue(t, root, "writer_team").Value
	assert.Equal(t, "eventcollectorowner", writer)
	teams := mappingValue(t, root, "teams")
	assert.True(t, sequenceHasScalar(teams, writer), "writer team must be evaluated")
	assert.True(t, sequenceHasScalar(teams, "data-engineering"))
	admins := mappingValue(t, root, "admins")
	assert.Equal(t, yaml.SequenceNode, admins.Kind)
	assert.Empty(t, admins.Content, "ADMIN must be opt-in")
}

func TestLoadTeamPolicy_AddsWriterTeam(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.yaml")
	require.NoError(t, os.WriteFile(path, []byte("org: acme\nwriter_team: owners\nteams: [readers]\n"), 0o600))

	policy, err := infrastructure.LoadTeamPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"readers", "owners"}, policy.Teams)
	assert.Equal(t, "acme", policy.Org)
}

func TestLoadTeamPolicy_RequiresWriterTeam(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.yaml")
	require.NoError(t, os.WriteFile(path, []byte("teams: [readers]\n"), 0o600))

	_, err := infrastructure.LoadTeamPolicy(path)
	assert.ErrorContains(t, err, "writer_team")
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EVENTCOLLECTOR_URL", "https://eventcollector.example/")
	t.Setenv("EVENTCOLLECTOR_SECRET", "c3VwZXItc2VjcmV0LWtleQ==")
	t.Setenv("SESSION_SECRET_KEY", "session-secret")
	t.Setenv("TEAMS_FILE", fixturePath(t, infrastructure.DefaultTeamsFile))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := infrastructure.Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3050*time.Millisecond, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, infrastructure.UserStoreMemory, cfg.UserStore)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, "eventcollectorowner", cfg.Teams.WriterTeam)
	assert.Empty(t, cfg.Teams.Admins)
}

func TestLoad_EnvFile(t *testing.T) {
	setRequiredEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GITHUB_CLIENT_ID=from-dotenv\nPORT=9999\n"), 0o600))
	t.Setenv("PORT", "7000")
	t.Cleanup(func() { _ = os.Unsetenv("GITHUB_CLIENT_ID") })

	cfg, err := infrastructure.Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.GitHub.ClientID)
	assert.Equal(t, "7000", cfg.Port, "process environment wins over .env")
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	setRequiredEnv(t)
	_, err := infrastructure.Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_SECRET_KEY", "")
	_, err := infrastructure.Load("")
	assert.Error(t, err)
}

func TestLoad_MalformedSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVENTCOLLECTOR_SECRET", "not base64!")
	_, err := infrastructure.Load("")
	assert.ErrorContains(t, err, "EVENTCOLLECTOR_SECRET")
}

func TestLoad_DynamoStoreNeedsTable(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("USER_STORE", "dynamodb")
	_, err := infrastructure.Load("")
	assert.ErrorContains(t, err, "TABLE_NAME")

	t.Setenv("TABLE_NAME", "ecselfservice-users")
	t.Setenv("AWS_REGION", "us-east-1")
	cfg, err := infrastructure.Load("")
	require.NoError(t, err)
	assert.Equal(t, "ecselfservice-users", cfg.TableName)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVENTCOLLECTOR_READ_TIMEOUT", "soon")
	_, err := infrastructure.Load("")
	assert.ErrorContains(t, err, "EVENTCOLLECTOR_READ_TIMEOUT")
}
