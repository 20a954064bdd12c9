package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMainTaskRequired  = errors.New("main_task is required")
	ErrNoAgents          = errors.New("at least one agent is required")
	ErrAgentNameRequired = errors.New("agent name is required")
	ErrDuplicateAgent    = errors.New("agent names must be unique")
)

// ToolSet 判断工具名是否存在
type ToolSet interface {
	Has(name string) bool
}

// Validate 检查能否提交给 Factory。tools 中不存在的工具名不算失败, 作为警告返回。
// tools 可以为 nil
func Validate(s *State, tools ToolSet) (warnings []string, err error) {
	if s == nil || strings.TrimSpace(s.MainTask) == "" {
		return nil, ErrMainTaskRequired
	}
	if len(s.Agents) == 0 {
		return nil, ErrNoAgents
	}

	seen := make(map[string]struct{}, len(s.Agents))
	for i, ag := range s.Agents {
		name := strings.TrimSpace(ag.Name)
		if name == "" {
			return nil, fmt.Errorf("agent %d: %w", i, ErrAgentNameRequired)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("agent %q: %w", name, ErrDuplicateAgent)
		}
		seen[name] = struct{}{}

		if tools == nil {
			continue
		}
		for _, t := range ag.Tools {
			if !tools.Has(t) {
				warnings = append(warnings, fmt.Sprintf("agent %q uses unknown tool %q", name, t))
			}
		}
	}
	return warnings, nil
}
