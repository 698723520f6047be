// Package logging builds the zap logger used by the binaries and adapts it to
// the printf style auth.Logger interface.
package logging

import (
	"fmt"
	"regexp"
	"strings"

	auth "github.com/goliatone/go-auth-frontend"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a zap.Logger. Any env other than "production" gets the
// development config with colored levels. An empty level keeps the config
// default.
func New(env, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		var zapLevel zapcore.Level
		if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	}

	return cfg.Build()
}

// Adapter exposes a zap logger as auth.Logger.
type Adapter struct {
	sugar *zap.SugaredLogger
}

var _ auth.Logger = (*Adapter)(nil)

// NewAdapter wraps l, naming it after the component when name is set.
func NewAdapter(l *zap.Logger, name string) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	if name != "" {
		l = l.Named(name)
	}
	return &Adapter{sugar: l.Sugar()}
}

func (a *Adapter) Debug(format string, args ...any) {
	a.sugar.Debugf(format, args...)
}

func (a *Adapter) Info(format string, args ...any) {
	a.sugar.Infof(format, args...)
}

func (a *Adapter) Warn(format string, args ...any) {
	a.sugar.Warnf(format, args...)
}

func (a *Adapter) Error(format string, args ...any) {
	a.sugar.Errorf(format, args...)
}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail keeps the first three characters and the domain.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	if matches := emailRegex.FindStringSubmatch(email); len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	if parts := strings.SplitN(email, "@", 2); len(parts) == 2 {
		return "***@" + parts[1]
	}

	return "***"
}
