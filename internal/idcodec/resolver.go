package idcodec

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

// Kind names an identifier space in the registry.
type Kind string

const (
	KindConversation Kind = "conversation"
)

const defaultAllocateAttempts = 8

var (
	// ErrUnresolvable means no wide id is known for a compact id.
	ErrUnresolvable = errors.New("identifier unresolvable")
	// ErrCollision means allocation kept hitting compact ids already taken.
	ErrCollision = errors.New("compact identifier collision")
)

// Registry stores the compact -> wide mapping. Register claims compact for
// wide unless it is already taken and returns the owner either way.
type Registry interface {
	Lookup(ctx context.Context, kind string, compact int64) (uuid.UUID, bool, error)
	Register(ctx context.Context, kind string, compact int64, wide uuid.UUID) (uuid.UUID, error)
	Release(ctx context.Context, kind string, compact int64, wide uuid.UUID) error
}

// CandidateScanner enumerates the conversation ids known to the store. fn
// returns false to stop the scan.
type CandidateScanner interface {
	ScanConversationIDs(ctx context.Context, fn func(uuid.UUID) bool) error
}

// Resolver turns compact ids back into wide ids and allocates new wide ids
// whose compact form is unique.
type Resolver struct {
	registry    Registry
	scanner     CandidateScanner
	newID       func() uuid.UUID
	maxAttempts int
}

// NewResolver creates a resolver. scanner may be nil, which disables the
// scan-and-match fallback for ids missing from the registry.
func NewResolver(registry Registry, scanner CandidateScanner) *Resolver {
	return &Resolver{
		registry:    registry,
		scanner:     scanner,
		newID:       NewWideID,
		maxAttempts: defaultAllocateAttempts,
	}
}

// ToWide resolves a compact id. Conversations created before the registry
// existed are found by scanning the participant index and matching on
// Compact; the first match wins and is written back to the registry.
func (r *Resolver) ToWide(ctx context.Context, kind Kind, compact int64) (uuid.UUID, error) {
	if compact < 0 {
		return uuid.Nil, ErrUnresolvable
	}

	wide, ok, err := r.registry.Lookup(ctx, string(kind), compact)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup %s %d: %w", kind, compact, err)
	}
	if ok {
		return wide, nil
	}

	if kind != KindConversation || r.scanner == nil {
		return uuid.Nil, ErrUnresolvable
	}

	var found uuid.UUID
	err = r.scanner.ScanConversationIDs(ctx, func(candidate uuid.UUID) bool {
		if Compact(candidate) == compact {
			found = candidate
			return false
		}
		return true
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("scan %s ids: %w", kind, err)
	}
	if found == uuid.Nil {
		return uuid.Nil, ErrUnresolvable
	}

	if _, err := r.registry.Register(ctx, string(kind), compact, found); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64("compact_id", compact).Msg("failed to backfill id registry")
	}
	return found, nil
}

// Allocate returns a fresh wide id registered under its compact form.
func (r *Resolver) Allocate(ctx context.Context, kind Kind) (uuid.UUID, int64, error) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		wide := r.newID()
		compact := Compact(wide)

		owner, err := r.registry.Register(ctx, string(kind), compact, wide)
		if err != nil {
			return uuid.Nil, 0, fmt.Errorf("register %s id: %w", kind, err)
		}
		if owner == wide {
			return wide, compact, nil
		}

		l := log.Ctx(ctx)
		l.Warn().Int64("compact_id", compact).Int("attempt", attempt+1).Msg("compact id collision, regenerating")
	}
	return uuid.Nil, 0, ErrCollision
}

// Release frees a registration made by Allocate that ended up unused.
func (r *Resolver) Release(ctx context.Context, kind Kind, wide uuid.UUID) error {
	return r.registry.Release(ctx, string(kind), Compact(wide), wide)
}
