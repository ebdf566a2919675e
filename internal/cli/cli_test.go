package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/testutil"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// repository returns the --db and --config flags of a fresh repository.
func repository(t *testing.T) []string {
	t.Helper()
	t.Setenv("CONTENTGRAPH_REDIS_ADDR", "")
	t.Setenv("CONTENTGRAPH_LOG_LEVEL", "error")
	return []string{"--db", filepath.Join(t.TempDir(), "content.db"), "--config", testutil.ConfigDir()}
}

func with(base []string, args ...string) []string {
	return append(append([]string{}, args...), base...)
}

// seed creates live with root node "sites" and user-editor with page "home".
func seed(t *testing.T, repo []string) {
	t.Helper()
	_, err := execute(t, with(repo, "init", "--root-node-type", "Acme:Sites", "--root-node-id", "sites")...)
	require.NoError(t, err)
	_, err = execute(t, with(repo, "handle", "CreateWorkspace", "--args",
		`{"workspaceName":"user-editor","baseWorkspaceName":"live","title":"Editor","newContentStreamId":"cs-editor"}`)...)
	require.NoError(t, err)
	_, err = execute(t, with(repo, "handle", "CreateNodeAggregateWithNode", "--user", "editor", "--args",
		`{"workspaceName":"user-editor","nodeAggregateId":"home","nodeTypeName":"Acme:Page",
		  "originDimensionSpacePoint":{"language":"de"},"parentNodeAggregateId":"sites","nodeName":"home",
		  "initialPropertyValues":{"title":"Hello"}}`)...)
	require.NoError(t, err)
}

func decodeData(t *testing.T, out string, target any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, target))
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "yaml", "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_InvalidEnvironment(t *testing.T) {
	t.Setenv("CONTENTGRAPH_MAX_RETRIES", "-1")
	_, err := execute(t, "validate", "--config", testutil.ConfigDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		out, err := execute(t, "validate", "--config", testutil.ConfigDir())
		require.NoError(t, err)
		assert.Contains(t, out, "✓ 1 dimension(s)")
		assert.Contains(t, out, "4 dimension space point(s)")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := execute(t, "validate", "--config", testutil.ConfigDir(), "--format", "json")
		require.NoError(t, err)
		var res ValidationResult
		decodeData(t, out, &res)
		assert.True(t, res.Valid)
		assert.Equal(t, 1, res.Dimensions)
		assert.Equal(t, 4, res.Points)
		assert.Positive(t, res.NodeTypes)
	})

	t.Run("configuration errors", func(t *testing.T) {
		out, err := execute(t, "validate", "--config", filepath.Join("..", "config", "testdata", "cycle"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗")
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestInit(t *testing.T) {
	repo := repository(t)

	out, err := execute(t, with(repo, "init", "--root-node-type", "Acme:Sites", "--root-node-id", "sites", "--format", "json")...)
	require.NoError(t, err)
	var res InitResult
	decodeData(t, out, &res)
	assert.Equal(t, "live", res.Workspace)
	assert.Equal(t, "sites", res.RootNodeID)
	assert.NotEmpty(t, res.ContentStreamID)

	// a second root workspace of the same name is rejected
	_, err = execute(t, with(repo, "init", "--root-node-type", "Acme:Sites")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInit_RequiresRootNodeType(t *testing.T) {
	_, err := execute(t, with(repository(t), "init")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root-node-type")
}

func TestHandle(t *testing.T) {
	repo := repository(t)
	seed(t, repo)

	t.Run("handled command", func(t *testing.T) {
		out, err := execute(t, with(repo, "handle", "SetNodeProperties", "--format", "json", "--args",
			`{"workspaceName":"user-editor","nodeAggregateId":"home","originDimensionSpacePoint":{"language":"de"},"propertyValues":{"title":"Changed"}}`)...)
		require.NoError(t, err)
		var res HandleResult
		decodeData(t, out, &res)
		assert.Equal(t, "SetNodeProperties", res.Command)
		assert.Equal(t, "ContentStream:cs-editor", res.Stream)
		assert.Equal(t, res.FirstSequence, res.LastSequence)
	})

	t.Run("rejected command", func(t *testing.T) {
		out, err := execute(t, with(repo, "handle", "SetNodeProperties", "--args",
			`{"workspaceName":"user-editor","nodeAggregateId":"missing","originDimensionSpacePoint":{"language":"de"},"propertyValues":{"title":"x"}}`)...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Rejected [NOT_FOUND]")
	})

	t.Run("unknown command type", func(t *testing.T) {
		_, err := execute(t, with(repo, "handle", "DoSomething")...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := execute(t, with(repo, "handle", "SetNodeProperties", "--args", "{not json")...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestNumbersToValues(t *testing.T) {
	in := map[string]any{
		"i": json.Number("3"),
		"f": json.Number("1.5"),
		"l": []any{json.Number("7")},
		"m": map[string]any{"n": json.Number("-2")},
		"s": "text",
	}
	numbersToValues(in)
	assert.Equal(t, int64(3), in["i"])
	assert.Equal(t, 1.5, in["f"])
	assert.Equal(t, []any{int64(7)}, in["l"])
	assert.Equal(t, map[string]any{"n": int64(-2)}, in["m"])
	assert.Equal(t, "text", in["s"])
}

func TestQuery(t *testing.T) {
	repo := repository(t)
	seed(t, repo)

	t.Run("node", func(t *testing.T) {
		out, err := execute(t, with(repo, "query", "node", "user-editor", "home", "--point", "language=gsw", "--format", "json")...)
		require.NoError(t, err)
		var n NodeView
		decodeData(t, out, &n)
		assert.Equal(t, "Acme:Page", n.Type)
		assert.Equal(t, map[string]string{"language": "de"}, n.Origin)
		assert.Equal(t, "Hello", n.Properties["title"])
	})

	t.Run("node not visible in live", func(t *testing.T) {
		_, err := execute(t, with(repo, "query", "node", "live", "home", "--point", "language=de")...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("children with filter", func(t *testing.T) {
		out, err := execute(t, with(repo, "query", "children", "user-editor", "sites", "--point", "language=de",
			"--filter", "title ^= 'Hel'", "--format", "json")...)
		require.NoError(t, err)
		var nodes []NodeView
		decodeData(t, out, &nodes)
		require.Len(t, nodes, 1)
		assert.Equal(t, "home", nodes[0].ID)

		out, err = execute(t, with(repo, "query", "children", "user-editor", "sites", "--point", "language=de",
			"--filter", "title = 'Other'")...)
		require.NoError(t, err)
		assert.Contains(t, out, "(none)")
	})

	t.Run("subtree", func(t *testing.T) {
		out, err := execute(t, with(repo, "query", "subtree", "user-editor", "sites", "--point", "language=de")...)
		require.NoError(t, err)
		assert.Contains(t, out, "sites <Acme:Sites>")
		assert.Contains(t, out, "  home <Acme:Page> name=home")
		assert.Contains(t, out, "<Acme:ContentCollection> name=main")
	})

	t.Run("subtree limited to one level", func(t *testing.T) {
		out, err := execute(t, with(repo, "query", "subtree", "user-editor", "sites", "--point", "language=de", "--levels", "1")...)
		require.NoError(t, err)
		assert.Contains(t, out, "home <Acme:Page>")
		assert.NotContains(t, out, "Acme:ContentCollection")
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := execute(t, with(repo, "query", "children", "user-editor", "sites", "--point", "language=de", "--filter", "title =")...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("unconfigured point", func(t *testing.T) {
		_, err := execute(t, with(repo, "query", "node", "user-editor", "home", "--point", "language=fr")...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("unknown workspace", func(t *testing.T) {
		_, err := execute(t, with(repo, "query", "node", "nope", "home", "--point", "language=de")...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("invalid visibility", func(t *testing.T) {
		_, err := execute(t, with(repo, "query", "node", "live", "sites", "--visibility", "backend")...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestStatus(t *testing.T) {
	repo := repository(t)
	seed(t, repo)

	out, err := execute(t, with(repo, "status", "--format", "json")...)
	require.NoError(t, err)
	var res StatusResult
	decodeData(t, out, &res)
	assert.Equal(t, res.HeadSequence, res.Checkpoint)
	require.Len(t, res.Workspaces, 2)

	byName := map[string]WorkspaceStatus{}
	for _, ws := range res.Workspaces {
		byName[ws.Name] = ws
	}
	assert.Equal(t, "cs-editor", byName["user-editor"].ContentStream)
	assert.Equal(t, "live", byName["user-editor"].Base)
	assert.Equal(t, "UP_TO_DATE", byName["user-editor"].Status)
	assert.Len(t, res.ContentStreams, 2)

	out, err = execute(t, with(repo, "status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "WORKSPACE")
	assert.Contains(t, out, "user-editor")
}

func TestEvents(t *testing.T) {
	repo := repository(t)
	seed(t, repo)

	t.Run("whole log", func(t *testing.T) {
		out, err := execute(t, with(repo, "events", "--format", "json")...)
		require.NoError(t, err)
		var res EventsResult
		decodeData(t, out, &res)
		require.NotEmpty(t, res.Events)
		assert.Equal(t, int64(1), res.Events[0].Seq)
		assert.Equal(t, "ContentStreamWasCreated", res.Events[0].Type)
		assert.Equal(t, res.Stats.Total, len(res.Events))
		assert.Equal(t, 2, res.Stats.ByType["NodeAggregateWithNodeWasCreated"])
	})

	t.Run("one stream", func(t *testing.T) {
		out, err := execute(t, with(repo, "events", "--stream", "Workspace:user-editor", "--format", "json")...)
		require.NoError(t, err)
		var res EventsResult
		decodeData(t, out, &res)
		require.Len(t, res.Events, 1)
		assert.Equal(t, "WorkspaceWasCreated", res.Events[0].Type)
	})

	t.Run("type filter and recorded command", func(t *testing.T) {
		out, err := execute(t, with(repo, "events", "--type", "NodeAggregateWithNodeWasCreated", "-v")...)
		require.NoError(t, err)
		assert.Contains(t, out, "<- CreateNodeAggregateWithNode")
		assert.Contains(t, out, "User: editor")
	})

	t.Run("after and limit", func(t *testing.T) {
		out, err := execute(t, with(repo, "events", "--after", "1", "--limit", "2", "--format", "json")...)
		require.NoError(t, err)
		var res EventsResult
		decodeData(t, out, &res)
		require.Len(t, res.Events, 2)
		assert.Equal(t, int64(2), res.Events[0].Seq)
	})
}

func TestReplay(t *testing.T) {
	repo := repository(t)
	seed(t, repo)

	out, err := execute(t, with(repo, "replay", "--format", "json")...)
	require.NoError(t, err)
	var res ReplayOutput
	decodeData(t, out, &res)
	assert.True(t, res.Identical)
	assert.Equal(t, res.Before, res.After)
	assert.Positive(t, res.Events)
}

func TestRun(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata")
	t.Setenv("CONTENTGRAPH_LOG_LEVEL", "error")

	t.Run("directory", func(t *testing.T) {
		out, err := execute(t, "run", scenarios, "--format", "json")
		require.NoError(t, err)
		var res RunResult
		decodeData(t, out, &res)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, 2, res.Passed)
	})

	t.Run("filter", func(t *testing.T) {
		out, err := execute(t, "run", scenarios, "--filter", "publish*")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ publish")
		assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	})

	t.Run("keep databases", func(t *testing.T) {
		keep := t.TempDir()
		_, err := execute(t, "run", filepath.Join(scenarios, "edit_page.yaml"), "--keep", keep)
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(keep, "edit_page.db"))
		assert.NoError(t, err)
	})

	t.Run("failing scenario", func(t *testing.T) {
		dir := t.TempDir()
		config, err := filepath.Abs(testutil.ConfigDir())
		require.NoError(t, err)
		scenario := "name: failing\nconfig: " + config + "\n" + `
flow:
  - command: CreateRootWorkspace
    args: {workspaceName: live, title: Live}
assertions:
  - type: workspace_status
    workspace: live
    status: OUTDATED
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "failing.yaml"), []byte(scenario), 0o644))

		out, err := execute(t, "run", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ failing")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "sub/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestOutputFormatter_DomainErrorPassesOtherErrors(t *testing.T) {
	f := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}}
	err := f.DomainError(os.ErrNotExist)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
