package tools

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	names := c.AvailableTools()
	require.Len(t, names, 21)
	assert.Equal(t, "X.PostTweet", names[0])
	assert.Equal(t, "Spotify.Search", names[len(names)-1])

	var order []string
	for _, g := range c.ByCategory() {
		order = append(order, g.Category)
	}
	assert.Equal(t, []string{
		"social", "search", "communication", "calendar", "finance",
		"email", "development", "productivity", "music",
	}, order)

	def, ok := c.Definition("GoogleSearch.Search")
	require.True(t, ok)
	require.Len(t, def.Parameters, 2)
	assert.True(t, def.Parameters[0].Required)
	assert.Equal(t, 5, def.Parameters[1].Default)

	assert.True(t, c.Has("Slack.WhoAmI"))
	assert.False(t, c.Has("Slack.Nope"))
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	_, err := Parse([]byte("tools: [{description: x}]"))
	assert.ErrorContains(t, err, "no tool_name")

	_, err = Parse([]byte("tools: [{tool_name: A.B}, {tool_name: A.B}]"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte("tools: {"))
	assert.Error(t, err)
}

func TestByCategoryOther(t *testing.T) {
	c, err := Parse([]byte("tools: [{tool_name: A.One}, {tool_name: B.Two, category: music}, {tool_name: C.Three}]"))
	require.NoError(t, err)

	groups := c.ByCategory()
	require.Len(t, groups, 2)
	assert.Equal(t, "other", groups[0].Category)
	assert.Len(t, groups[0].Tools, 2)
}

func TestPromptSection(t *testing.T) {
	now := time.Date(2025, 3, 4, 17, 30, 0, 0, time.UTC)
	out := Default().PromptSection(now)

	assert.True(t, strings.HasPrefix(out, "# TIMEZONE\n\n- We are in the timezone: New York\n- Time now: 2025-03-04 12:30:00 EST\n\n## Social\n\n"))
	assert.Contains(t, out, "tool_name = \"X.PostTweet\"\nPost a tweet to X (Twitter).\n\nParameters:\n\n"+
		"- tweet_text (string, required) The text content of the tweet you want to post\n")
	assert.Contains(t, out, "tool_name = \"Slack.WhoAmI\"\nGet comprehensive user profile information.\n\nParameters:\nThis tool takes no parameters.\n\n")
	assert.Contains(t, out, "- n_results (integer, optional, Defaults to 5) Number of results to retrieve.\n")
	assert.Contains(t, out, "- exclude_bots (boolean, optional, Defaults to true) Whether to exclude bots from the results.\n")
	// false defaults are not rendered
	assert.Contains(t, out, "- show_deleted (boolean, optional) Whether to show deleted calendars.\n")
	assert.Contains(t, out, "- visibility (string, optional, Defaults to all) Filter by repository visibility.")
	assert.Contains(t, out, "## Music\n\n")
}

func TestSystemPrompt(t *testing.T) {
	out := Default().SystemPrompt(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(out, "You are Workflow Builder."))
	assert.Contains(t, out, "call upsert_workflow right away")
	assert.Contains(t, out, "<workflow_tools>\n# TIMEZONE\n")
	assert.Contains(t, out, "Time now: 2025-07-01 08:00:00 EDT")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</workflow_tools>"))
}
