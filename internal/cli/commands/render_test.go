package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlscope/internal/cli/config"
	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	clitestutil "github.com/leapstack-labs/sqlscope/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const correlated = "SELECT * FROM hr.staff s WHERE EXISTS (SELECT 1 FROM orders o WHERE o.id = s.)"

func TestRenderInspection_Modes(t *testing.T) {
	eng, _, _ := testEngine(t)
	in, err := eng.Inspect(t.Context(), correlated, len(correlated)-1)
	require.NoError(t, err)

	t.Run("markdown", func(t *testing.T) {
		tr := clitestutil.NewTestRendererMarkdown()
		require.NoError(t, renderInspection(tr.Renderer, in))

		md := tr.Output()
		clitestutil.AssertValidMarkdown(t, md)
		clitestutil.AssertNoANSI(t, md)
		assert.Contains(t, md, "# Scope 1 at offset")
		assert.Contains(t, md, "- **Path:** 0 > 1")
		assert.Contains(t, md, "| s | hr.staff | outer | id, name, manager_id |")
	})

	t.Run("text", func(t *testing.T) {
		tr := clitestutil.NewTestRendererText()
		require.NoError(t, renderInspection(tr.Renderer, in))

		text := clitestutil.StripANSI(tr.Output())
		assert.Contains(t, text, "path: 0 > 1")
		assert.Contains(t, text, "scope 1")
	})

	t.Run("json", func(t *testing.T) {
		tr := clitestutil.NewTestRendererJSON()
		require.NoError(t, renderInspection(tr.Renderer, in))

		var got struct {
			Path []int `json:"path"`
		}
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
		assert.Equal(t, []int{0, 1}, got.Path)
	})
}

func TestRenderCompletion_Modes(t *testing.T) {
	eng, _, _ := testEngine(t)
	res := eng.Complete(t.Context(), correlated, len(correlated)-1)

	tr := clitestutil.NewTestRendererMarkdown()
	require.NoError(t, renderCompletion(tr.Renderer, res))
	md := tr.Output()
	clitestutil.AssertValidMarkdown(t, md)
	assert.Contains(t, md, "after s.")
	assert.Contains(t, md, "| manager_id | column |")

	tr = clitestutil.NewTestRendererText()
	res.Items = nil
	require.NoError(t, renderCompletion(tr.Renderer, res))
	assert.Contains(t, tr.ErrorOutput(), "no candidates")
}

func TestRenderCompletion_Truncated(t *testing.T) {
	eng, _, _ := testEngine(t)
	res := eng.Complete(t.Context(), "SELECT ", 7)
	res.Truncated = true

	tr := clitestutil.NewTestRenderer(output.ModeText, false)
	require.NoError(t, renderCompletion(tr.Renderer, res))
	assert.Contains(t, tr.ErrorOutput(), "list truncated")
}

func TestCommandLoadsConfigFromWorkingDirectory(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "output: markdown\n")
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	out, _, err := execute(t, NewScopesCommand(), "SELECT * FROM orders o, (SELECT 1) x")
	require.NoError(t, err)
	clitestutil.AssertValidMarkdown(t, out)
	assert.True(t, strings.HasPrefix(out, "# Scopes (2)"), out)
	assert.Contains(t, out, "| 1 | 1 | 0 | x |")
}
