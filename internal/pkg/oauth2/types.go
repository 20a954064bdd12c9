package oauth2

import "context"

// GoogleUserInfoURL Google OpenID userinfo 端点
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Config OAuth2 配置
type Config struct {
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url" json:"redirect_url"`
	Scopes       []string `yaml:"scopes" json:"scopes"`

	// 可选：自定义端点（默认使用 Google 端点）
	AuthURL     string `yaml:"auth_url" json:"auth_url,omitempty"`
	TokenURL    string `yaml:"token_url" json:"token_url,omitempty"`
	UserInfoURL string `yaml:"userinfo_url" json:"userinfo_url,omitempty"`
}

// UserInfo is the subset of the OpenID userinfo document used for sign-in
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// SignInProvider 第三方登录提供者
type SignInProvider interface {
	// AuthCodeURL 生成授权 URL
	AuthCodeURL(state string) string

	// Exchange 用授权码换取用户信息
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}
