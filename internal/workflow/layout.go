package workflow

import "math"

const (
	columnWidth = 300
	rowHeight   = 200
	margin      = 50
)

// Position 画布坐标
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData 节点内容
type NodeData struct {
	Agent     Agent  `json:"agent"`
	AgentName string `json:"agentName"`
	Label     string `json:"label"`
}

// Node 画布上的 agent
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge 连接两个 agent
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Canvas 布局后的工作流图
type Canvas struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Layout 把 agent 排成近似正方形的网格, 为每个存在于工作流中的连接画边
func Layout(s *State) Canvas {
	canvas := Canvas{Nodes: []Node{}, Edges: []Edge{}}
	if s == nil || len(s.Agents) == 0 {
		return canvas
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(s.Agents)))))
	names := make(map[string]struct{}, len(s.Agents))
	for _, ag := range s.Agents {
		names[ag.Name] = struct{}{}
	}

	for i, ag := range s.Agents {
		row, col := i/cols, i%cols
		canvas.Nodes = append(canvas.Nodes, Node{
			ID:   ag.Name,
			Type: "agent",
			Position: Position{
				X: float64(col*columnWidth + margin),
				Y: float64(row*rowHeight + margin),
			},
			Data: NodeData{Agent: ag, AgentName: ag.Name, Label: ag.Name},
		})

		for _, target := range ag.ConnectedAgents {
			if _, ok := names[target]; !ok {
				continue
			}
			canvas.Edges = append(canvas.Edges, Edge{
				ID:     ag.Name + "-" + target,
				Source: ag.Name,
				Target: target,
				Type:   "smoothstep",
			})
		}
	}
	return canvas
}
