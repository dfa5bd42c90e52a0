// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package provider

import (
	"cmp"
	"slices"
	"sync/atomic"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// LivenessFunc decides whether a descriptor is usable right now, typically
// "does its credential resolve". Evaluated at load/reload time so the
// request path never blocks on credential lookups.
type LivenessFunc func(Descriptor) bool

// Registry is the read-mostly provider catalog. Candidate selection reads a
// single atomically swapped snapshot, so concurrent readers never observe a
// half-updated descriptor set; Reload builds a complete new snapshot and
// swaps it in one store.
type Registry struct {
	state    atomic.Pointer[catalogState]
	liveness LivenessFunc
}

// catalogState is one immutable snapshot of the catalog.
type catalogState struct {
	ordered  []Descriptor // live descriptors sorted by (priority, price, id)
	byID     map[string]Descriptor
	adapters map[string]Adapter
}

// NewRegistry builds a registry from descriptors and their adapters.
// A nil liveness func treats every descriptor as live.
func NewRegistry(descs []Descriptor, adapters map[string]Adapter, live LivenessFunc) (*Registry, error) {
	r := &Registry{liveness: live}
	if err := r.Reload(descs, adapters); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload atomically replaces the catalog. The previous snapshot's adapters
// that do not carry over are closed. Validation failures leave the current
// catalog untouched.
func (r *Registry) Reload(descs []Descriptor, adapters map[string]Adapter) error {
	var errs []error
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		if seen[d.ID] {
			errs = append(errs, kilnerr.Errorf(kilnerr.CodeProviderReloadInvalid,
				"duplicate provider id %q", d.ID))
		}
		seen[d.ID] = true
		errs = append(errs, d.Validate()...)
	}
	if len(errs) > 0 {
		return kilnerr.Wrap(kilnerr.Join(errs...), kilnerr.CodeProviderReloadInvalid,
			"validating provider catalog")
	}

	next := &catalogState{
		byID:     make(map[string]Descriptor, len(descs)),
		adapters: adapters,
	}
	for _, d := range descs {
		next.byID[d.ID] = d
		if r.liveness == nil || r.liveness(d) {
			next.ordered = append(next.ordered, d)
		}
	}
	slices.SortStableFunc(next.ordered, func(a, b Descriptor) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.UnitPriceMicros, b.UnitPriceMicros); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	prev := r.state.Swap(next)
	if prev != nil {
		closeOrphans(prev, next)
	}
	return nil
}

// closeOrphans closes adapters from the previous snapshot that are not
// reused by the next one.
func closeOrphans(prev, next *catalogState) {
	for id, a := range prev.adapters {
		if a == nil {
			continue
		}
		if reused, ok := next.adapters[id]; ok && reused == a {
			continue
		}
		_ = a.Close()
	}
}

// CandidatesFor returns the ordered candidate descriptors for one request:
// matching modality, tier-eligible, live, sorted by ascending priority with
// price as the tiebreaker. An empty result is not an error; the caller
// decides what an empty candidate list means.
func (r *Registry) CandidatesFor(modality types.Modality, tier types.Tier) []Descriptor {
	st := r.state.Load()
	var out []Descriptor
	for _, d := range st.ordered {
		if d.Modality != modality {
			continue
		}
		if !d.EligibleFor(tier) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Descriptor looks up a catalog entry by id, live or not.
func (r *Registry) Descriptor(id string) (Descriptor, error) {
	st := r.state.Load()
	d, ok := st.byID[id]
	if !ok {
		return Descriptor{}, kilnerr.New(kilnerr.CodeProviderNotFound,
			"provider not found: "+id, kilnerr.FieldProvider(id))
	}
	return d, nil
}

// Descriptors returns every catalog entry in priority order, including
// entries currently excluded by the liveness predicate.
func (r *Registry) Descriptors() []Descriptor {
	st := r.state.Load()
	out := make([]Descriptor, 0, len(st.byID))
	for _, d := range st.byID {
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b Descriptor) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Adapter returns the adapter bound to a descriptor id.
func (r *Registry) Adapter(id string) (Adapter, error) {
	st := r.state.Load()
	a, ok := st.adapters[id]
	if !ok || a == nil {
		return nil, kilnerr.New(kilnerr.CodeProviderNotFound,
			"no adapter bound for provider: "+id, kilnerr.FieldProvider(id))
	}
	return a, nil
}

// Close shuts down every adapter in the current snapshot.
func (r *Registry) Close() error {
	st := r.state.Load()
	var errs []error
	for _, a := range st.adapters {
		if a == nil {
			continue
		}
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return kilnerr.Join(errs...)
	}
	return nil
}
