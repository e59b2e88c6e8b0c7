// Package rules loads and serves the per-service eligibility rule documents.
package rules

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/utils"
)

// Source supplies raw rule documents, keyed by origin name (file name or
// object key). Implementations exist for a local directory and for S3.
type Source interface {
	FetchDocuments(ctx context.Context) (map[string][]byte, error)
}

// LoadOutcome records the result of parsing one rule document. A document
// that fails to parse degrades only itself; the rest of the load proceeds.
type LoadOutcome struct {
	Name       string `json:"name"`
	ServiceKey string `json:"service_key,omitempty"`
	Err        error  `json:"-"`
}

// snapshot is one immutable generation of the rule set. Readers hold a
// snapshot for the duration of an evaluation and never observe a reload.
type snapshot struct {
	docs map[string]*models.RuleDocument
	keys []string
}

// Store holds the in-memory rule set behind an atomically swapped snapshot,
// so concurrent evaluations need no locking against the loader.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore creates an empty rule store. Lookup against an empty store
// reports ErrRuleNotFound for every service.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{docs: map[string]*models.RuleDocument{}})
	return s
}

// Load fetches and parses every document from the source, then swaps the
// whole set in atomically. It returns one outcome per document; the only
// error return is a source-level fetch failure, which leaves the previous
// snapshot untouched.
func (s *Store) Load(ctx context.Context, src Source) ([]LoadOutcome, error) {
	raw, err := src.FetchDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule documents: %w", err)
	}
	if len(raw) == 0 {
		return nil, models.ErrNoRuleDocuments
	}

	next := &snapshot{docs: make(map[string]*models.RuleDocument, len(raw))}
	outcomes := make([]LoadOutcome, 0, len(raw))

	for _, name := range sortedNames(raw) {
		doc, err := ParseDocument(raw[name])
		if err != nil {
			utils.GetLogger().Warn("Skipping malformed rule document",
				zap.String("name", name),
				zap.Error(err),
			)
			outcomes = append(outcomes, LoadOutcome{Name: name, Err: err})
			continue
		}
		next.docs[doc.ServiceKey] = doc
		next.keys = append(next.keys, doc.ServiceKey)
		outcomes = append(outcomes, LoadOutcome{Name: name, ServiceKey: doc.ServiceKey})
	}

	s.current.Store(next)

	utils.GetLogger().Info("Rule store loaded",
		zap.Int("documents", len(next.docs)),
		zap.Int("skipped", len(raw)-len(next.docs)),
		zap.Strings("services", next.keys),
	)

	return outcomes, nil
}

// Lookup resolves a free-text or canonical service name to its rule
// document. Missing services report models.ErrRuleNotFound; callers are
// expected to degrade to a "no rules" result rather than fail.
func (s *Store) Lookup(service string) (*models.RuleDocument, error) {
	key := models.NormalizeServiceKey(service)
	doc, ok := s.current.Load().docs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRuleNotFound, service)
	}
	return doc, nil
}

// Services returns the loaded service keys in load order.
func (s *Store) Services() []string {
	keys := s.current.Load().keys
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Len reports the number of loaded documents.
func (s *Store) Len() int {
	return len(s.current.Load().docs)
}
