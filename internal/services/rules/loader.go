// Package rules loads and serves the per-service eligibility rule documents.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"health-eligibility-engine/internal/models"
)

// ParseDocument decodes and validates one rule document. Unknown
// requirement types are normalized to the existence check here, so the
// matcher never sees an unrecognized tag.
func ParseDocument(data []byte) (*models.RuleDocument, error) {
	var doc models.RuleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedDocument, err)
	}
	if err := models.ValidateRuleDocument(&doc); err != nil {
		return nil, err
	}
	for i := range doc.Requirements {
		doc.Requirements[i].Type = models.NormalizeRequirementType(doc.Requirements[i].Type)
	}
	return &doc, nil
}

// DirSource reads every *.json file from a local rules directory.
type DirSource struct {
	Dir string
}

// FetchDocuments reads the directory. A directory with no JSON files is
// not a fetch error; the store reports it as an empty load.
func (d DirSource) FetchDocuments(_ context.Context) (map[string][]byte, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory %s: %w", d.Dir, err)
	}

	docs := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read rule file %s: %w", entry.Name(), err)
		}
		docs[entry.Name()] = data
	}
	return docs, nil
}

// MapSource serves documents from memory.
type MapSource map[string][]byte

// FetchDocuments returns the map as-is.
func (m MapSource) FetchDocuments(_ context.Context) (map[string][]byte, error) {
	return m, nil
}

// sortedNames gives a stable load order regardless of source map order.
func sortedNames(raw map[string][]byte) []string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
