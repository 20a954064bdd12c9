package biz

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"

	chattypes "github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/project/types"
)

// 导出格式
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// Transcript 可下载的对话记录
type Transcript struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Transcript 把项目对话渲染为 markdown 或 HTML
func (uc *ProjectUseCase) Transcript(ctx context.Context, userID, id, format string) (*Transcript, error) {
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, ErrInvalidFormat
	}

	p, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	md := RenderMarkdown(p.Conversation())
	if format == FormatMarkdown {
		return &Transcript{
			ContentType: "text/markdown; charset=utf-8",
			Filename:    p.ID + ".md",
			Body:        md,
		}, nil
	}

	body, err := RenderHTML(p.Name, md)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		ContentType: "text/html; charset=utf-8",
		Filename:    p.ID + ".html",
		Body:        body,
	}, nil
}

// RenderMarkdown 每条消息一节, 推理以引用显示, 工具调用以 JSON 代码块显示
func RenderMarkdown(conv types.Conversation) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "_Last updated %s_\n", conv.UpdatedAt.UTC().Format("Jan 2, 2006 15:04 UTC"))

	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "\n## %s\n", roleTitle(m.Role))
		for _, p := range m.Parts {
			switch v := p.(type) {
			case chattypes.TextPart:
				fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(v.Text))
			case chattypes.ReasoningPart:
				b.WriteString("\n")
				for _, line := range strings.Split(strings.TrimSpace(v.Text), "\n") {
					fmt.Fprintf(&b, "> %s\n", line)
				}
			case chattypes.ToolCallPart:
				fmt.Fprintf(&b, "\n**Tool call** `%s`\n\n```json\n%s\n```\n", v.ToolName, string(v.Input))
			case chattypes.ToolResultPart:
				fmt.Fprintf(&b, "\n**Tool result** `%s`\n\n```json\n%s\n```\n", v.ToolName, string(v.Output))
			}
		}
	}
	return []byte(b.String())
}

// RenderHTML 把 markdown 转为独立页面, 消息中的原始 HTML 不渲染
func RenderHTML(title string, md []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(title))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func roleTitle(r chattypes.Role) string {
	switch r {
	case chattypes.RoleUser:
		return "User"
	case chattypes.RoleAssistant:
		return "Assistant"
	case chattypes.RoleSystem:
		return "System"
	default:
		return string(r)
	}
}
