// Package tools 工作流 agent 可用的工具目录, 以及渲染到系统提示词中的目录段落
package tools

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Parameter 工具参数
type Parameter struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required" json:"required"`
	Description string `yaml:"description" json:"description,omitempty"`
	Default     any    `yaml:"default" json:"default,omitempty"`
}

// Definition 工具定义
type Definition struct {
	ToolName    string      `yaml:"tool_name" json:"tool_name"`
	Description string      `yaml:"description" json:"description"`
	Category    string      `yaml:"category" json:"category"`
	Parameters  []Parameter `yaml:"parameters" json:"parameters"`
}

// Catalog 有序的工具定义集合
type Catalog struct {
	Tools []Definition `yaml:"tools" json:"tools"`
}

// Parse 解析目录文档
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("tools: parse catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Tools))
	for i, t := range c.Tools {
		if t.ToolName == "" {
			return nil, fmt.Errorf("tools: entry %d has no tool_name", i)
		}
		if _, dup := seen[t.ToolName]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", t.ToolName)
		}
		seen[t.ToolName] = struct{}{}
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default 内嵌目录
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// AvailableTools 按目录顺序列出工具名
func (c *Catalog) AvailableTools() []string {
	names := make([]string, 0, len(c.Tools))
	for _, t := range c.Tools {
		names = append(names, t.ToolName)
	}
	return names
}

// CategoryGroup 同一分类的工具
type CategoryGroup struct {
	Category string       `json:"category"`
	Tools    []Definition `json:"tools"`
}

// ByCategory 按首次出现顺序分组, 没有分类的归入 "other"
func (c *Catalog) ByCategory() []CategoryGroup {
	var groups []CategoryGroup
	index := make(map[string]int)
	for _, t := range c.Tools {
		cat := t.Category
		if cat == "" {
			cat = "other"
		}
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, CategoryGroup{Category: cat})
		}
		groups[i].Tools = append(groups[i].Tools, t)
	}
	return groups
}

// Definition 按名称查找
func (c *Catalog) Definition(name string) (Definition, bool) {
	for _, t := range c.Tools {
		if t.ToolName == name {
			return t, true
		}
	}
	return Definition{}, false
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.Definition(name)
	return ok
}

// PromptTimezone 提示词头部使用的时区
const PromptTimezone = "America/New_York"

// PromptSection 渲染系统提示词中的目录段落, 带当前时间
func (c *Catalog) PromptSection(now time.Time) string {
	if loc, err := time.LoadLocation(PromptTimezone); err == nil {
		now = now.In(loc)
	}

	var b strings.Builder
	b.WriteString("# TIMEZONE\n\n- We are in the timezone: New York\n")
	fmt.Fprintf(&b, "- Time now: %s\n\n", now.Format("2006-01-02 15:04:05 MST"))

	for _, g := range c.ByCategory() {
		fmt.Fprintf(&b, "## %s\n\n", strings.ToUpper(g.Category[:1])+g.Category[1:])
		for _, t := range g.Tools {
			fmt.Fprintf(&b, "tool_name = %q\n", t.ToolName)
			b.WriteString(t.Description + "\n\n")

			if len(t.Parameters) == 0 {
				b.WriteString("Parameters:\nThis tool takes no parameters.\n")
			} else {
				b.WriteString("Parameters:\n\n")
				for _, p := range t.Parameters {
					b.WriteString(p.line() + "\n")
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (p Parameter) line() string {
	req := "optional"
	if p.Required {
		req = "required"
	}
	def := ""
	if shownDefault(p.Default) {
		def = fmt.Sprintf(", Defaults to %v", p.Default)
	}
	return fmt.Sprintf("- %s (%s, %s%s) %s", p.Name, p.Type, req, def, p.Description)
}

// shownDefault 不展示 false、0、"" 这类零值默认值
func shownDefault(v any) bool {
	switch d := v.(type) {
	case nil:
		return false
	case bool:
		return d
	case int:
		return d != 0
	case float64:
		return d != 0
	case string:
		return d != ""
	default:
		return true
	}
}
