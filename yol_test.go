package yol_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/yol"
	"github.com/aretw0/yol/internal/testutils"
	"github.com/aretw0/yol/pkg/adapters/memory"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/identity"
	"github.com/aretw0/yol/pkg/ports"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T, name string, opts ...yol.Option) *yol.Runner {
	t.Helper()
	opts = append([]yol.Option{yol.WithLogger(slogt.New(t))}, opts...)
	return yol.New(name, opts...)
}

func TestRunner_OneLink(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	r := newRunner(t, "site").Define("", "A", rec.Action("A"))

	assert.Equal(t, domain.StatusIdle, r.Status())
	require.NoError(t, r.Execute(ctx))

	state, err := r.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", state)
	assert.Equal(t, domain.StatusCompleted, r.Status())

	require.NoError(t, r.Execute(ctx))
	assert.Equal(t, []string{"A"}, rec.Calls())

	report, ok := r.LastReport()
	require.True(t, ok)
	assert.Empty(t, report.Applied)
	assert.Equal(t, "A", report.From)
}

func TestRunner_ThreeLinks(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	r := newRunner(t, "site").
		Define("", "A", rec.Action("A")).
		Define("A", "B", rec.Action("B")).
		Define("B", "C", rec.Action("C"))

	require.NoError(t, r.Execute(ctx))
	assert.Equal(t, []string{"A", "B", "C"}, rec.Calls())

	rec.Reset()
	require.NoError(t, r.Execute(ctx))
	assert.Empty(t, rec.Calls())

	state, err := r.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C", state)
}

func TestRunner_FailedTransitionIsRetried(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	r := newRunner(t, "site").
		Define("", "A", rec.Action("A")).
		Define("A", "B", rec.Failing("B")).
		Define("B", "C", rec.Action("C"))

	err := r.Execute(ctx)
	assert.ErrorIs(t, err, domain.ErrTransitionFailed)
	assert.Equal(t, domain.StatusFailed, r.Status())

	state, err := r.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", state)

	err = r.Execute(ctx)
	assert.ErrorIs(t, err, domain.ErrTransitionFailed)
	assert.Equal(t, []string{"A", "B", "B"}, rec.Calls())
}

func TestRunner_DefinitionErrorsAreKept(t *testing.T) {
	rec := &testutils.Recorder{}
	r := newRunner(t, "site").
		Define("", "A", rec.Action("A")).
		Define(" a ", "A", rec.Action("A")).
		Define("A", "B", rec.Action("B"))

	assert.ErrorIs(t, r.Err(), domain.ErrSelfTransition)
	assert.ErrorIs(t, r.Validate(), domain.ErrDefinition)

	err := r.Execute(context.Background())
	assert.ErrorIs(t, err, domain.ErrDefinition)
	assert.Empty(t, rec.Calls())
	assert.Equal(t, domain.StatusFailed, r.Status())
}

func TestRunner_DuplicateSource(t *testing.T) {
	r := newRunner(t, "site").
		DefineFunc("", "A", func() bool { return true }).
		DefineFunc("a", "B", func() bool { return true }).
		DefineFunc(" A ", "C", func() bool { return true })

	assert.ErrorIs(t, r.Err(), domain.ErrDuplicateTransition)
}

func TestRunner_InvalidGraphDoesNotRun(t *testing.T) {
	rec := &testutils.Recorder{}
	r := newRunner(t, "site").
		Define("", "A", rec.Action("A")).
		Define("B", "C", rec.Action("C"))

	err := r.Execute(context.Background())
	assert.ErrorIs(t, err, domain.ErrGraph)
	assert.ErrorIs(t, err, domain.ErrMultipleTerminalStates)
	assert.Empty(t, rec.Calls())
}

func TestRunner_UnknownState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	r := newRunner(t, "site", yol.WithStore(store)).Define("", "A", (&testutils.Recorder{}).Action("A"))
	require.NoError(t, store.CompareAndSet(ctx, r.Key(), "", "removed"))

	err := r.Execute(ctx)
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}

func TestRunner_ConcurrentRunsSharingStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := memory.NewStore()
	require.NoError(t, store.CompareAndSet(ctx, domain.StateKey("site"), "", "A"))
	barrier := testutils.NewBarrier(2)

	build := func() *yol.Runner {
		return newRunner(t, "site", yol.WithStore(store)).
			Define("", "A", func(context.Context) (bool, error) { return true, nil }).
			Define("A", "B", func(ctx context.Context) (bool, error) {
				return true, barrier.Wait(ctx)
			})
	}
	runners := []*yol.Runner{build(), build()}

	errs := make([]error, len(runners))
	var wg sync.WaitGroup
	for i, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.Execute(ctx)
		}()
	}
	wg.Wait()

	joined := errors.Join(errs...)
	require.Error(t, joined)
	assert.ErrorIs(t, joined, domain.ErrConcurrency)
	assert.True(t, errs[0] == nil || errs[1] == nil, "one run must win: %v", errs)

	state, _, err := store.Get(ctx, domain.StateKey("site"))
	require.NoError(t, err)
	assert.Equal(t, "B", state)
}

func TestRunner_RoundTripEndsAtTerminal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 1; n <= 10; n++ {
		t.Run(fmt.Sprintf("chain of %d", n), func(t *testing.T) {
			states := make([]string, n)
			for i := range states {
				states[i] = fmt.Sprintf("state-%02d", i)
			}

			type link struct{ source, target string }
			links := make([]link, n)
			source := ""
			for i, target := range states {
				links[i] = link{source, target}
				source = target
			}
			rng.Shuffle(len(links), func(i, j int) { links[i], links[j] = links[j], links[i] })

			rec := &testutils.Recorder{}
			r := newRunner(t, "chain")
			for _, l := range links {
				r.Define(l.source, l.target, rec.Action(l.target))
			}

			terminal, err := r.Terminal()
			require.NoError(t, err)
			require.NoError(t, r.Execute(context.Background()))

			state, err := r.CurrentState(context.Background())
			require.NoError(t, err)
			assert.Equal(t, terminal, state)
			assert.Equal(t, states, rec.Calls())
		})
	}
}

type recordingImpersonator struct {
	mu     sync.Mutex
	events []string
	endErr error
}

func (i *recordingImpersonator) Begin(ctx context.Context, id string) (context.Context, ports.ImpersonationToken, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, "begin:"+id)
	return identity.WithPrincipal(ctx, identity.Principal{Login: id}), id, nil
}

func (i *recordingImpersonator) End(_ context.Context, token ports.ImpersonationToken) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, fmt.Sprintf("end:%v", token))
	return i.endErr
}

func TestRunner_ImpersonatesAroundWholeRun(t *testing.T) {
	imp := &recordingImpersonator{}
	var seen []string
	action := func(ctx context.Context) (bool, error) {
		p, ok := identity.PrincipalFrom(ctx)
		require.True(t, ok)
		seen = append(seen, p.Login)
		return true, nil
	}

	r := newRunner(t, "site", yol.WithImpersonator(imp), yol.WithIdentity("jdemo")).
		Define("", "A", action).
		Define("A", "B", action)

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, []string{"begin:jdemo", "end:jdemo"}, imp.events)
	assert.Equal(t, []string{"jdemo", "jdemo"}, seen)
}

func TestRunner_EndsImpersonationOnFailure(t *testing.T) {
	imp := &recordingImpersonator{}
	r := newRunner(t, "site", yol.WithImpersonator(imp), yol.WithIdentity("jdemo")).
		Define("", "A", (&testutils.Recorder{}).Failing("A"))

	assert.ErrorIs(t, r.Execute(context.Background()), domain.ErrTransitionFailed)
	assert.Equal(t, []string{"begin:jdemo", "end:jdemo"}, imp.events)
}

func TestRunner_EndErrorIsReported(t *testing.T) {
	endErr := errors.New("cannot restore")
	imp := &recordingImpersonator{endErr: endErr}
	r := newRunner(t, "site", yol.WithImpersonator(imp), yol.WithIdentity("jdemo")).
		Define("", "A", (&testutils.Recorder{}).Action("A"))

	err := r.Execute(context.Background())
	assert.ErrorIs(t, err, endErr)
	assert.Equal(t, domain.StatusFailed, r.Status())
}

func TestRunner_NoIdentityNoImpersonation(t *testing.T) {
	imp := &recordingImpersonator{}
	r := newRunner(t, "site", yol.WithImpersonator(imp)).
		Define("", "A", (&testutils.Recorder{}).Action("A"))

	require.NoError(t, r.Execute(context.Background()))
	assert.Empty(t, imp.events)
}

func TestRunner_IdentityLookup(t *testing.T) {
	imp := &recordingImpersonator{}
	lookup := func(name string) (string, bool) {
		if name == "site" {
			return "from-config", true
		}
		return "", false
	}
	r := newRunner(t, "site", yol.WithImpersonator(imp), yol.WithIdentityLookup(lookup)).
		Define("", "A", (&testutils.Recorder{}).Action("A"))

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, []string{"begin:from-config", "end:from-config"}, imp.events)
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked int
	err      error
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked++
		return nil
	}, nil
}

func TestRunner_Locker(t *testing.T) {
	locker := &fakeLocker{}
	r := newRunner(t, "site", yol.WithLocker(locker)).
		Define("", "A", (&testutils.Recorder{}).Action("A"))

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, []string{r.Key()}, locker.locked)
	assert.Equal(t, 1, locker.unlocked)

	locker.err = context.DeadlineExceeded
	assert.ErrorIs(t, r.Execute(context.Background()), context.DeadlineExceeded)
}

func TestRunner_Hooks(t *testing.T) {
	var first, second int
	r := newRunner(t, "site",
		yol.WithLifecycleHooks(domain.LifecycleHooks{
			OnTransitionEnd: func(context.Context, *domain.TransitionEvent) { first++ },
		}),
		yol.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunEnd: func(context.Context, *domain.RunEvent) { second++ },
		}),
	).Define("", "A", (&testutils.Recorder{}).Action("A")).
		Define("A", "B", (&testutils.Recorder{}).Action("B"))

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, 2, first)
	assert.Equal(t, 1, second)
}

func TestRunner_Mermaid(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, "site").
		Define("", "A", (&testutils.Recorder{}).Action("A")).
		Define("A", "B", (&testutils.Recorder{}).Failing("B"))

	_ = r.Execute(ctx)

	out, err := r.Mermaid(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "initial --> s_a")
	assert.Contains(t, out, "class initial visited;")
	assert.Contains(t, out, "class s_a current;")
}

func TestRunner_AnonymousKey(t *testing.T) {
	r := yol.New("")
	assert.Equal(t, "yol.manager.anonymous.state", r.Key())
	assert.Equal(t, "", r.Name())
}
