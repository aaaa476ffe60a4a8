package idcodec

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	entries   map[string]uuid.UUID
	lookupErr error
	released  []uuid.UUID
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: map[string]uuid.UUID{}}
}

func registryKey(kind string, compact int64) string {
	return fmt.Sprintf("%s/%d", kind, compact)
}

func (f *fakeRegistry) Lookup(_ context.Context, kind string, compact int64) (uuid.UUID, bool, error) {
	if f.lookupErr != nil {
		return uuid.Nil, false, f.lookupErr
	}
	w, ok := f.entries[registryKey(kind, compact)]
	return w, ok, nil
}

func (f *fakeRegistry) Register(_ context.Context, kind string, compact int64, wide uuid.UUID) (uuid.UUID, error) {
	key := registryKey(kind, compact)
	if owner, ok := f.entries[key]; ok {
		return owner, nil
	}
	f.entries[key] = wide
	return wide, nil
}

func (f *fakeRegistry) Release(_ context.Context, kind string, compact int64, wide uuid.UUID) error {
	key := registryKey(kind, compact)
	if f.entries[key] == wide {
		delete(f.entries, key)
		f.released = append(f.released, wide)
	}
	return nil
}

type fakeScanner struct {
	ids     []uuid.UUID
	visited int
}

func (f *fakeScanner) ScanConversationIDs(_ context.Context, fn func(uuid.UUID) bool) error {
	for _, id := range f.ids {
		f.visited++
		if !fn(id) {
			return nil
		}
	}
	return nil
}

func TestResolverRegistryHit(t *testing.T) {
	reg := newFakeRegistry()
	r := NewResolver(reg, nil)

	wide, compact, err := r.Allocate(context.Background(), KindConversation)
	require.NoError(t, err)
	assert.Equal(t, Compact(wide), compact)

	got, err := r.ToWide(context.Background(), KindConversation, compact)
	require.NoError(t, err)
	assert.Equal(t, wide, got)
}

func TestResolverScanFallbackBackfillsRegistry(t *testing.T) {
	reg := newFakeRegistry()
	target := uuid.MustParse("aaaaaaaa-aaaa-4000-8000-000000000001")
	scanner := &fakeScanner{ids: []uuid.UUID{uuid.New(), target, uuid.New()}}
	r := NewResolver(reg, scanner)

	got, err := r.ToWide(context.Background(), KindConversation, Compact(target))
	require.NoError(t, err)
	assert.Equal(t, target, got)
	assert.Equal(t, 2, scanner.visited, "scan stops at first match")

	scanner.visited = 0
	got, err = r.ToWide(context.Background(), KindConversation, Compact(target))
	require.NoError(t, err)
	assert.Equal(t, target, got)
	assert.Zero(t, scanner.visited, "second lookup served by the registry")
}

func TestResolverUnresolvable(t *testing.T) {
	r := NewResolver(newFakeRegistry(), &fakeScanner{ids: []uuid.UUID{uuid.New()}})

	_, err := r.ToWide(context.Background(), KindConversation, 12345)
	assert.ErrorIs(t, err, ErrUnresolvable)

	_, err = r.ToWide(context.Background(), KindConversation, -1)
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolverPropagatesRegistryErrors(t *testing.T) {
	reg := newFakeRegistry()
	reg.lookupErr = errors.New("unavailable")
	r := NewResolver(reg, nil)

	_, err := r.ToWide(context.Background(), KindConversation, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnresolvable)
}

func TestResolverAllocateRetriesOnCollision(t *testing.T) {
	reg := newFakeRegistry()
	r := NewResolver(reg, nil)

	taken := uuid.MustParse("11111111-1100-4000-8000-000000000000")
	clash := uuid.MustParse("11111111-11ff-4000-8000-000000000000")
	fresh := uuid.MustParse("22222222-2200-4000-8000-000000000000")
	_, err := reg.Register(context.Background(), string(KindConversation), Compact(taken), taken)
	require.NoError(t, err)

	seq := []uuid.UUID{clash, fresh}
	r.newID = func() uuid.UUID {
		id := seq[0]
		seq = seq[1:]
		return id
	}

	wide, compact, err := r.Allocate(context.Background(), KindConversation)
	require.NoError(t, err)
	assert.Equal(t, fresh, wide)
	assert.Equal(t, Compact(fresh), compact)
}

func TestResolverAllocateGivesUp(t *testing.T) {
	reg := newFakeRegistry()
	r := NewResolver(reg, nil)

	taken := uuid.MustParse("33333333-3300-4000-8000-000000000000")
	_, err := reg.Register(context.Background(), string(KindConversation), Compact(taken), taken)
	require.NoError(t, err)
	r.newID = func() uuid.UUID { return uuid.MustParse("33333333-33ee-4000-8000-000000000000") }

	_, _, err = r.Allocate(context.Background(), KindConversation)
	assert.ErrorIs(t, err, ErrCollision)
}

func TestResolverRelease(t *testing.T) {
	reg := newFakeRegistry()
	r := NewResolver(reg, nil)

	wide, compact, err := r.Allocate(context.Background(), KindConversation)
	require.NoError(t, err)
	require.NoError(t, r.Release(context.Background(), KindConversation, wide))
	assert.Equal(t, []uuid.UUID{wide}, reg.released)

	_, err = r.ToWide(context.Background(), KindConversation, compact)
	assert.ErrorIs(t, err, ErrUnresolvable)
}
