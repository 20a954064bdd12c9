package workflow

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolSet map[string]bool

func (t toolSet) Has(name string) bool { return t[name] }

func TestDecodeAgentsShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"list", `{"agents":[{"name":"b"},{"name":"a"}]}`, []string{"b", "a"}},
		{"object keeps document order", `{"agents":{"zeta":{"task":"z"},"alpha":{"name":"Alpha"}}}`, []string{"zeta", "Alpha"}},
		{"null", `{"agents":null}`, nil},
		{"missing", `{"main_task":"x"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode([]byte(tt.input))
			require.NoError(t, err)

			var got []string
			for _, ag := range s.Agents {
				got = append(got, ag.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Decode([]byte(`{"agents":"nope"}`))
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	nested := []byte(`
workflow:
  main_task: triage email
  agents:
    reader:
      task: read the inbox
      connected_agents: [writer]
      tools: [Gmail.SendEmail]
    writer:
      task: draft replies
`)
	s, err := ParseYAML(nested)
	require.NoError(t, err)
	assert.Equal(t, "triage email", s.MainTask)
	require.Len(t, s.Agents, 2)
	assert.Equal(t, "reader", s.Agents[0].Name)
	assert.Equal(t, []string{"writer"}, s.Agents[0].ConnectedAgents)

	bare := []byte("main_task: x\nrelations: a to b\nagents:\n  - name: a\n  - name: b\n")
	s, err = ParseYAML(bare)
	require.NoError(t, err)
	assert.Equal(t, "a to b", s.Relations)
	assert.Len(t, s.Agents, 2)

	_, err = ParseYAML([]byte("agents: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	known := toolSet{"Slack.SendMessage": true}

	tests := []struct {
		name    string
		state   *State
		wantErr error
		warns   int
	}{
		{"nil", nil, ErrMainTaskRequired, 0},
		{"blank task", &State{MainTask: "  ", Agents: Agents{{Name: "a"}}}, ErrMainTaskRequired, 0},
		{"no agents", &State{MainTask: "x"}, ErrNoAgents, 0},
		{"unnamed", &State{MainTask: "x", Agents: Agents{{Task: "t"}}}, ErrAgentNameRequired, 0},
		{"duplicate", &State{MainTask: "x", Agents: Agents{{Name: "a"}, {Name: "a"}}}, ErrDuplicateAgent, 0},
		{"unknown tool warns", &State{MainTask: "x", Agents: Agents{{Name: "a", Tools: []string{"Slack.SendMessage", "Fax.Send"}}}}, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := Validate(tt.state, known)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, warnings, tt.warns)
		})
	}
}

func TestToFactoryConfig(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		objective string
		relations any
		model     string
		agents    int
	}{
		{"defaults", `{}`, "", "manager", "gpt-4o-mini", 0},
		{"main task and string relations", `{"main_task":"m","relations":"chain it"}`, "m", "chain it", "gpt-4o-mini", 0},
		{"objective wins", `{"objective":"o","main_task":"m","relations":{"type":"triage"}}`, "o", "triage", "gpt-4o-mini", 0},
		{"relations_type wins", `{"relations_type":"single","relations":{"type":"chain"},"model_name":"gpt-4.1"}`, "", "single", "gpt-4.1", 0},
		{"null relations falls through", `{"relations":null}`, "", "manager", "gpt-4o-mini", 0},
		{"agents map", `{"agents":{"a":{"name":"a"},"b":{"name":"b"}}}`, "", "manager", "gpt-4o-mini", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ToFactoryConfig([]byte(tt.raw), "", "gpt-4o-mini")
			assert.Equal(t, tt.objective, cfg.Objective)
			assert.Equal(t, tt.relations, cfg.RelationsType)
			assert.Equal(t, tt.model, cfg.ModelName)
			assert.Len(t, cfg.Agents, tt.agents)
		})
	}
}

func TestToFactoryConfigStampsUser(t *testing.T) {
	cfg := ToFactoryConfig([]byte(`{"agents":[{"name":"a"},{"name":"b","user_id":"other"}]}`), "u1", "m")
	require.Len(t, cfg.Agents, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(cfg.Agents[0], &first))
	require.NoError(t, json.Unmarshal(cfg.Agents[1], &second))
	assert.Equal(t, "u1", first["user_id"])
	assert.Equal(t, "other", second["user_id"])

	body, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"objective":"","relations_type":"manager","model_name":"m","api_key":"",
		"agents":[{"name":"a","user_id":"u1"},{"name":"b","user_id":"other"}]}`, string(body))
}

func TestLayout(t *testing.T) {
	s := &State{Agents: Agents{
		{Name: "a", ConnectedAgents: []string{"b", "ghost"}},
		{Name: "b", ConnectedAgents: []string{"c"}},
		{Name: "c"},
		{Name: "d", ConnectedAgents: []string{"a"}},
		{Name: "e"},
	}}

	canvas := Layout(s)

	var got []Position
	for _, n := range canvas.Nodes {
		got = append(got, n.Position)
	}
	// five agents use a three column grid
	want := []Position{{50, 50}, {350, 50}, {650, 50}, {50, 250}, {350, 250}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}

	wantEdges := []Edge{
		{ID: "a-b", Source: "a", Target: "b", Type: "smoothstep"},
		{ID: "b-c", Source: "b", Target: "c", Type: "smoothstep"},
		{ID: "d-a", Source: "d", Target: "a", Type: "smoothstep"},
	}
	assert.Equal(t, wantEdges, canvas.Edges)
	assert.Equal(t, "agent", canvas.Nodes[0].Type)
	assert.Equal(t, "a", canvas.Nodes[0].Data.AgentName)

	empty := Layout(nil)
	assert.Empty(t, empty.Nodes)
	assert.NotNil(t, empty.Edges)
}
