package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "edit_page.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "edit_page", s.Name)
	assert.Equal(t, filepath.Join("testdata", "..", "..", "..", "config"), s.Config)
	require.Len(t, s.Setup, 3)
	require.Len(t, s.Flow, 3)

	step := s.Flow[0]
	assert.Equal(t, "CreateNodeAggregateWithNode", step.Command)
	assert.Equal(t, "editor", step.User)
	assert.Equal(t, map[string]any{"language": "de"}, step.Args["originDimensionSpacePoint"])

	require.NotNil(t, s.Flow[2].Expect)
	assert.Equal(t, "NOT_FOUND", s.Flow[2].Expect.Code)
	assert.Equal(t, "NodeAggregateCurrentlyDoesNotExist", s.Flow[2].Expect.Reason)

	assert.Equal(t, AssertNodeExists, s.Assertions[0].Type)
	assert.Equal(t, map[string]string{"language": "gsw"}, s.Assertions[0].Point)
}

func TestLoadScenario_AbsoluteConfigIsKept(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, `
name: abs
config: `+dir+`
flow:
  - command: CreateRootWorkspace
    args: {workspaceName: live}
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Config)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\nconfig: c\nflows: []\n",
			wantErr: "field flows not found",
		},
		{
			name:    "missing name",
			content: "config: c\nflow:\n  - command: CreateRootWorkspace\n",
			wantErr: "name is required",
		},
		{
			name:    "missing config",
			content: "name: x\nflow:\n  - command: CreateRootWorkspace\n",
			wantErr: "config is required",
		},
		{
			name:    "empty flow",
			content: "name: x\nconfig: c\nflow: []\n",
			wantErr: "at least one step",
		},
		{
			name:    "unknown command",
			content: "name: x\nconfig: c\nflow:\n  - command: PaintNode\n",
			wantErr: `flow[0]: unknown command "PaintNode"`,
		},
		{
			name:    "setup expectation",
			content: "name: x\nconfig: c\nsetup:\n  - command: CreateRootWorkspace\n    expect: {code: NOT_FOUND}\nflow:\n  - command: CreateRootWorkspace\n",
			wantErr: "setup steps cannot expect errors",
		},
		{
			name:    "unknown assertion",
			content: "name: x\nconfig: c\nflow:\n  - command: CreateRootWorkspace\nassertions:\n  - type: vibes\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "incomplete assertion",
			content: "name: x\nconfig: c\nflow:\n  - command: CreateRootWorkspace\nassertions:\n  - type: property\n    workspace: live\n    node: home\n",
			wantErr: "requires workspace, node and property",
		},
		{
			name:    "bad visibility",
			content: "name: x\nconfig: c\nflow:\n  - command: CreateRootWorkspace\nassertions:\n  - type: node_exists\n    workspace: live\n    node: home\n    visibility: everything\n",
			wantErr: `unknown visibility "everything"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}
