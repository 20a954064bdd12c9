package tools

import (
	_ "embed"
	"strings"
	"text/template"
	"time"
)

// UpsertWorkflowTool 构建模型保存工作流时调用的函数
const UpsertWorkflowTool = "upsert_workflow"

//go:embed system_prompt.tmpl
var systemPromptSource string

var systemPrompt = template.Must(template.New("system").Parse(systemPromptSource))

// SystemPrompt 渲染嵌入工具目录的系统提示词
func (c *Catalog) SystemPrompt(now time.Time) string {
	var b strings.Builder
	// 模板是静态的, 数据只有字符串
	_ = systemPrompt.Execute(&b, struct {
		ToolName string
		Tools    string
	}{
		ToolName: UpsertWorkflowTool,
		Tools:    c.PromptSection(now),
	})
	return b.String()
}
