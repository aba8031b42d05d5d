package logger

import (
	"net"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey keys the request identifier on a context.Context.
type RequestIDKey struct{}

// New builds the process logger. Production gets JSON output at info level;
// every other environment gets the colored console encoder with debug enabled.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProductionConfig().Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// MaskEmail hides the bulk of the local part of an address so log lines
// identify a user without recording the full email.
// "daniel@example.com" becomes "dan***@example.com".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}

	local, domain := email[:at], email[at:]
	visible := 3
	if len(local) < visible {
		visible = len(local)
	}
	return local[:visible] + "***" + domain
}

// MaskIP truncates an address for logging. IPv4 keeps the first two octets,
// IPv6 keeps the first four groups. Anything unparseable is fully masked.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "***"
	}

	if v4 := parsed.To4(); v4 != nil {
		octets := strings.Split(v4.String(), ".")
		return octets[0] + "." + octets[1] + ".*.*"
	}

	groups := strings.Split(parsed.To16().String(), ":")
	if len(groups) < 4 {
		return "***"
	}
	out := append([]string{}, groups[:4]...)
	for range groups[4:] {
		out = append(out, "*")
	}
	return strings.Join(out, ":")
}
