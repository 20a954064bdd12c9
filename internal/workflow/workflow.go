// Package workflow 用户在对话中构建的多 agent 工作流: 可编辑状态、校验、
// Factory 传输格式以及对话旁的画布布局
package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Agent 工作流参与者
type Agent struct {
	Name             string   `json:"name" yaml:"name"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	Task             string   `json:"task,omitempty" yaml:"task,omitempty"`
	Instructions     string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	ConnectedAgents  []string `json:"connected_agents,omitempty" yaml:"connected_agents,omitempty"`
	ExpectedInput    string   `json:"expected_input,omitempty" yaml:"expected_input,omitempty"`
	ExpectedOutput   string   `json:"expected_output,omitempty" yaml:"expected_output,omitempty"`
	ReceivesFromUser bool     `json:"receives_from_user,omitempty" yaml:"receives_from_user,omitempty"`
	SendsToUser      bool     `json:"sends_to_user,omitempty" yaml:"sends_to_user,omitempty"`
	Tools            []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Agents 保持书写顺序。可以从列表或以名称为 key 的对象解码, 对象形式下 key 补全缺失的 name
type Agents []Agent

// State 构建中的工作流
type State struct {
	MainTask  string `json:"main_task" yaml:"main_task"`
	Relations string `json:"relations" yaml:"relations"`
	Agents    Agents `json:"agents" yaml:"agents"`
}

var errAgentsShape = errors.New("workflow: agents must be a list or an object")

func (a *Agents) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}

	switch data[0] {
	case '[':
		var list []Agent
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*a = list
		return nil
	case '{':
		var (
			out   Agents
			inner error
		)
		// gjson 按文档顺序遍历
		gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
			var ag Agent
			if err := json.Unmarshal([]byte(value.Raw), &ag); err != nil {
				inner = fmt.Errorf("workflow: agent %q: %w", key.String(), err)
				return false
			}
			if ag.Name == "" {
				ag.Name = key.String()
			}
			out = append(out, ag)
			return true
		})
		if inner != nil {
			return inner
		}
		*a = out
		return nil
	default:
		return errAgentsShape
	}
}

func (a *Agents) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []Agent
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = list
		return nil
	case yaml.MappingNode:
		out := make(Agents, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			var ag Agent
			if err := node.Content[i+1].Decode(&ag); err != nil {
				return fmt.Errorf("workflow: agent %q: %w", key, err)
			}
			if ag.Name == "" {
				ag.Name = key
			}
			out = append(out, ag)
		}
		*a = out
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*a = nil
			return nil
		}
	}
	return errAgentsShape
}

// Find 按名称查找 agent
func (a Agents) Find(name string) (Agent, bool) {
	for _, ag := range a {
		if ag.Name == name {
			return ag, true
		}
	}
	return Agent{}, false
}

// Decode 解析 JSON 形式的 State
func Decode(raw []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("workflow: decode: %w", err)
	}
	return &s, nil
}

// ParseYAML 解析工作流文档, 支持顶层 State 或嵌套在 "workflow" 下
func ParseYAML(data []byte) (*State, error) {
	var doc struct {
		Workflow *State `yaml:"workflow"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workflow: parse yaml: %w", err)
	}
	if doc.Workflow != nil {
		return doc.Workflow, nil
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("workflow: parse yaml: %w", err)
	}
	return &s, nil
}
