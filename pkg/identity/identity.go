// Package identity provides a context-based Impersonator.
//
// The acting principal travels in the context handed to the actions, so an
// action can read it with PrincipalFrom. Nothing process-wide is mutated,
// which keeps concurrent runners from seeing each other's identity.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
)

var _ ports.Impersonator = (*ContextImpersonator)(nil)

// ErrUnknownUser is returned when a Directory does not know the login.
var ErrUnknownUser = errors.New("invalid logon")

// Principal is the user a run acts as.
type Principal struct {
	Login string
	Name  string
}

func (p Principal) String() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal carried by ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Directory resolves a login to a principal.
type Directory interface {
	Lookup(ctx context.Context, login string) (Principal, error)
}

// StaticDirectory is a Directory backed by a map of login to display name.
// Logins are matched case-insensitively.
type StaticDirectory map[string]string

// Lookup implements Directory.
func (d StaticDirectory) Lookup(_ context.Context, login string) (Principal, error) {
	for l, name := range d {
		if domain.SameState(l, login) {
			return Principal{Login: l, Name: name}, nil
		}
	}
	return Principal{}, fmt.Errorf("%w: %q", ErrUnknownUser, login)
}

// token remembers the principal in place before Begin.
type token struct {
	previous    Principal
	hadPrevious bool
	acting      Principal
}

// ContextImpersonator swaps the principal of the context for the duration of a run.
type ContextImpersonator struct {
	directory Directory
	logger    *slog.Logger
}

// Option configures a ContextImpersonator.
type Option func(*ContextImpersonator)

// WithDirectory makes Begin reject logins the directory does not know.
func WithDirectory(d Directory) Option {
	return func(i *ContextImpersonator) {
		i.directory = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *ContextImpersonator) {
		i.logger = logger
	}
}

// NewContextImpersonator creates an impersonator. Without a directory any
// non-blank login is accepted as is.
func NewContextImpersonator(opts ...Option) *ContextImpersonator {
	i := &ContextImpersonator{
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Begin implements ports.Impersonator.
func (i *ContextImpersonator) Begin(ctx context.Context, login string) (context.Context, ports.ImpersonationToken, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return ctx, nil, fmt.Errorf("%w: empty login", ErrUnknownUser)
	}

	acting := Principal{Login: login}
	if i.directory != nil {
		p, err := i.directory.Lookup(ctx, login)
		if err != nil {
			return ctx, nil, err
		}
		acting = p
	}

	previous, had := PrincipalFrom(ctx)
	current := "<none>"
	if had {
		current = fmt.Sprintf("%q", previous.String())
	}
	i.logger.Info("Impersonating", "current", current, "as", acting.String())

	return WithPrincipal(ctx, acting), &token{previous: previous, hadPrevious: had, acting: acting}, nil
}

// End implements ports.Impersonator.
func (i *ContextImpersonator) End(_ context.Context, t ports.ImpersonationToken) error {
	tok, ok := t.(*token)
	if !ok {
		return fmt.Errorf("identity: foreign impersonation token %T", t)
	}
	i.logger.Info("Restoring current user", "was", tok.acting.String())
	return nil
}
