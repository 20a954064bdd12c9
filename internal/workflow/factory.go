package workflow

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DefaultRelationsType 未指定 relations 时的默认值
const DefaultRelationsType = "manager"

// FactoryConfig Factory verify 接口的请求体
type FactoryConfig struct {
	Objective     string            `json:"objective"`
	RelationsType any               `json:"relations_type"`
	ModelName     string            `json:"model_name"`
	APIKey        string            `json:"api_key"`
	Agents        []json.RawMessage `json:"agents"`
}

// ToFactoryConfig 把编辑器状态转换为 Factory 格式。直接读取 raw, 保留编辑器未建模的字段:
// objective 缺省取 main_task, relations_type 依次取 relations.type 和 relations。
// 对象形式的 agents 按文档顺序转为列表, 没有 user_id 的 agent 填入 userID
func ToFactoryConfig(raw []byte, userID, defaultModel string) FactoryConfig {
	doc := gjson.ParseBytes(raw)

	cfg := FactoryConfig{
		Objective:     firstString(doc, "objective", "main_task"),
		RelationsType: DefaultRelationsType,
		ModelName:     defaultModel,
		APIKey:        firstString(doc, "api_key"),
		Agents:        []json.RawMessage{},
	}

	for _, path := range []string{"relations_type", "relations.type", "relations"} {
		if v := doc.Get(path); present(v) {
			cfg.RelationsType = v.Value()
			break
		}
	}
	if v := doc.Get("model_name"); present(v) {
		cfg.ModelName = v.String()
	}

	agents := doc.Get("agents")
	if agents.IsArray() || agents.IsObject() {
		agents.ForEach(func(_, value gjson.Result) bool {
			cfg.Agents = append(cfg.Agents, stampUser(value, userID))
			return true
		})
	}
	return cfg
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); present(v) {
			return v.String()
		}
	}
	return ""
}

func stampUser(agent gjson.Result, userID string) json.RawMessage {
	if userID == "" || !agent.IsObject() || present(agent.Get("user_id")) {
		return json.RawMessage(agent.Raw)
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(agent.Raw), &m); err != nil {
		return json.RawMessage(agent.Raw)
	}
	m["user_id"] = userID
	out, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(agent.Raw)
	}
	return out
}
