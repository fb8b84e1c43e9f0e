package identity_test

import (
	"context"
	"testing"

	"github.com/aretw0/yol/pkg/identity"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextImpersonator_SwapsPrincipal(t *testing.T) {
	imp := identity.NewContextImpersonator(identity.WithLogger(slogt.New(t)))

	outer := identity.WithPrincipal(context.Background(), identity.Principal{Login: "admin"})
	ctx, tok, err := imp.Begin(outer, "  jdemo ")
	require.NoError(t, err)

	p, ok := identity.PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "jdemo", p.Login)

	// The caller's context is untouched.
	p, ok = identity.PrincipalFrom(outer)
	require.True(t, ok)
	assert.Equal(t, "admin", p.Login)

	assert.NoError(t, imp.End(ctx, tok))
}

func TestContextImpersonator_Directory(t *testing.T) {
	dir := identity.StaticDirectory{"JDemo": "John Demo"}
	imp := identity.NewContextImpersonator(identity.WithDirectory(dir))

	ctx, tok, err := imp.Begin(context.Background(), "jdemo")
	require.NoError(t, err)
	p, _ := identity.PrincipalFrom(ctx)
	assert.Equal(t, "John Demo", p.String())
	require.NoError(t, imp.End(ctx, tok))

	_, _, err = imp.Begin(context.Background(), "ghost")
	assert.ErrorIs(t, err, identity.ErrUnknownUser)
}

func TestContextImpersonator_Rejects(t *testing.T) {
	imp := identity.NewContextImpersonator()

	_, _, err := imp.Begin(context.Background(), "   ")
	assert.ErrorIs(t, err, identity.ErrUnknownUser)

	assert.Error(t, imp.End(context.Background(), "not a token"))
}

func TestPrincipalFrom_Empty(t *testing.T) {
	_, ok := identity.PrincipalFrom(context.Background())
	assert.False(t, ok)
}
