// Package console the "oem idme" command interface
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/idmestash/internal/idme"
	"github.com/S0me0neR0man/idmestash/internal/metrics"
)

const (
	// MaxTokenLen longest token kept, the rest is cut
	MaxTokenLen = 31
	// maxTokens "idme" plus two arguments
	maxTokens = 3

	escape = "--"
)

var ErrLocked = errors.New("oem idme not allowed for locked hw")

// Store the manager operations reachable from the console
type Store interface {
	Print(w io.Writer) error
	GetString(name string) (string, error)
	Set(name string, value []byte) error
	Clean() error
	SetVersion(v string) error
}

type unlockKey struct{}

// WithUnlocked marks ctx as coming from an unlocked host
func WithUnlocked(ctx context.Context) context.Context {
	return context.WithValue(ctx, unlockKey{}, true)
}

func IsUnlocked(ctx context.Context) bool {
	v, _ := ctx.Value(unlockKey{}).(bool)
	return v
}

type Console struct {
	store  Store
	locked bool

	sugar *zap.SugaredLogger
}

type Option func(*Console)

// WithLock rejects mutations unless the context is unlocked
func WithLock(locked bool) Option {
	return func(c *Console) {
		c.locked = locked
	}
}

func New(store Store, logger *zap.Logger, opts ...Option) *Console {
	c := &Console{
		store: store,
		sugar: logger.Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokenize splits on spaces, drops empty tokens and cuts every token to MaxTokenLen
func Tokenize(line string) []string {
	fields := strings.Split(line, " ")
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if len(f) > MaxTokenLen {
			f = f[:MaxTokenLen]
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Exec runs one command line and returns its code, 0 on success
func (c *Console) Exec(ctx context.Context, line string, out Responder) int {
	id := uuid.NewString()
	sugar := c.sugar.With("request", id)

	if out == nil {
		out = Discard
	}

	tokens := Tokenize(line)
	if len(tokens) > 0 && tokens[0] == "oem" {
		tokens = tokens[1:]
	}
	sugar.Debugw("console command", "tokens", tokens)

	kind, code := c.exec(ctx, tokens, out, sugar)
	metrics.Command(kind, code)
	if code != idme.CodeOK {
		sugar.Warnw("console command failed", "kind", kind, "code", code)
	}
	return code
}

func (c *Console) exec(ctx context.Context, tokens []string, out Responder, sugar *zap.SugaredLogger) (string, int) {
	if err := ctx.Err(); err != nil {
		return "canceled", idme.CodeFailure
	}
	if len(tokens) == 0 || tokens[0] != "idme" {
		out.Info("unknown command")
		return "invalid", idme.CodeFailure
	}
	args := tokens[1:]

	if len(args) == 0 || strings.HasPrefix(args[0], "?") {
		if len(args) == 2 {
			return "get", c.get(args[1], out)
		}
		return "print", c.print(out)
	}

	if len(args) == 3 && args[0] == escape {
		return "set", c.mutate(ctx, out, sugar, func() error {
			sugar.Infow("setting item", "item", args[1], "value", args[2])
			return c.store.Set(args[1], []byte(args[2]))
		})
	}

	if len(tokens) > maxTokens {
		return "noop", idme.CodeOK
	}

	if len(args) == 1 {
		if args[0] == "clean" {
			return "clean", c.mutate(ctx, out, sugar, c.store.Clean)
		}
		return "noop", idme.CodeOK
	}

	name, value := args[0], args[1]
	switch {
	case value == "clean":
		return "clean-item", c.mutate(ctx, out, sugar, func() error {
			sugar.Infow("clean item", "item", name)
			return c.store.Set(name, []byte{})
		})
	case name == "version":
		return "version", c.mutate(ctx, out, sugar, func() error {
			err := c.store.SetVersion(value)
			if errors.Is(err, idme.ErrUnknownVersion) {
				out.Info("Error version, try again!")
				out.Info("valid versions: " + validVersions())
			}
			return err
		})
	default:
		return "set", c.mutate(ctx, out, sugar, func() error {
			sugar.Infow("setting item", "item", name, "value", value)
			return c.store.Set(name, []byte(value))
		})
	}
}

func (c *Console) get(name string, out Responder) int {
	v, err := c.store.GetString(name)
	out.Info(fmt.Sprintf("%s: %s", name, v))
	return idme.Code(err)
}

func (c *Console) print(out Responder) int {
	w := &infoWriter{out: out}
	err := c.store.Print(w)
	w.Flush()
	if err != nil {
		c.sugar.Errorw("print idme failed", "error", err)
	}
	return idme.Code(err)
}

func (c *Console) mutate(ctx context.Context, out Responder, sugar *zap.SugaredLogger, fn func() error) int {
	if c.locked && !IsUnlocked(ctx) {
		out.Info(ErrLocked.Error())
		sugar.Warnw("console mutation rejected", "error", ErrLocked)
		return idme.CodeFailure
	}
	if err := fn(); err != nil {
		sugar.Errorw("console mutation failed", "error", err)
		return idme.Code(err)
	}
	return idme.CodeOK
}

func validVersions() string {
	vs := idme.Versions()
	names := make([]string, len(vs))
	for i, e := range vs {
		names[i] = e.Version
	}
	return strings.Join(names, " ")
}
