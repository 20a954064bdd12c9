package validator

import (
	"net"
	"net/mail"
	"strings"
)

// ClientIP 返回规范化后的 IP,无效时返回空串。
// IPv6 zone 会被去掉 (fe80::1%eth0 -> fe80::1)
func ClientIP(raw string) string {
	ip := strings.TrimSpace(raw)
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		ip = ip[:idx]
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	return parsed.String()
}

// Email 小写并去空格,仅接受裸地址 (不含显示名)
func Email(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}
