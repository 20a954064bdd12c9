package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleSignIn 基于 Google OAuth2 的登录提供者
type GoogleSignIn struct {
	oauth2Config *oauth2.Config
	userInfoURL  string
	httpClient   *http.Client
}

// NewGoogleSignIn 创建 Google 登录提供者
func NewGoogleSignIn(cfg *Config) (*GoogleSignIn, error) {
	if cfg == nil {
		return nil, fmt.Errorf("oauth2 config is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client_id and client_secret are required")
	}

	// 默认使用 Google OAuth2 端点
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}

	return &GoogleSignIn{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
			RedirectURL:  cfg.RedirectURL,
		},
		userInfoURL: userInfoURL,
		httpClient:  http.DefaultClient,
	}, nil
}

// AuthCodeURL 生成 OAuth2 授权 URL
func (p *GoogleSignIn) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange 交换授权码并读取用户信息
func (p *GoogleSignIn) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.oauth2Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Subject == "" || info.Email == "" {
		return nil, fmt.Errorf("userinfo missing subject or email")
	}
	return &info, nil
}
