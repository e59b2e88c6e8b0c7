package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"health-eligibility-engine/internal/models"
)

const rpmDoc = `{
	"service_key": "rpm",
	"display_name": "Remote Patient Monitoring (RPM)",
	"requirements": [
		{"name": "chronic_conditions", "required": true, "type": "contains_any", "values": ["diabetes"]},
		{"name": "device_access", "required": true, "type": "boolean"}
	]
}`

const telehealthDoc = `{
	"service_key": "telehealth",
	"requirements": [
		{"name": "internet_access", "required": true, "type": "boolean"}
	]
}`

// failingSource simulates an unreachable rule source.
type failingSource struct{}

func (failingSource) FetchDocuments(context.Context) (map[string][]byte, error) {
	return nil, errors.New("connection refused")
}

func TestStore_LoadAndLookup(t *testing.T) {
	store := NewStore()

	outcomes, err := store.Load(context.Background(), MapSource{
		"rpm.json":        []byte(rpmDoc),
		"telehealth.json": []byte(telehealthDoc),
	})

	assert.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, 2, store.Len())
	assert.ElementsMatch(t, []string{"rpm", "telehealth"}, store.Services())

	doc, err := store.Lookup("Remote Patient Monitoring (RPM)")
	assert.NoError(t, err)
	assert.Equal(t, "rpm", doc.ServiceKey)

	_, err = store.Lookup("acupuncture")
	assert.ErrorIs(t, err, models.ErrRuleNotFound)
}

func TestStore_EmptyStoreLookupFails(t *testing.T) {
	store := NewStore()
	_, err := store.Lookup("rpm")
	assert.ErrorIs(t, err, models.ErrRuleNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestStore_MalformedDocumentDegradesOnlyItself(t *testing.T) {
	store := NewStore()

	outcomes, err := store.Load(context.Background(), MapSource{
		"rpm.json": []byte(rpmDoc),
		"bad.json": []byte(`{not json`),
	})

	assert.NoError(t, err, "One bad document should not fail the load")
	assert.Equal(t, 1, store.Len())

	var badOutcome *LoadOutcome
	for i := range outcomes {
		if outcomes[i].Name == "bad.json" {
			badOutcome = &outcomes[i]
		}
	}
	assert.NotNil(t, badOutcome)
	assert.Error(t, badOutcome.Err)

	_, err = store.Lookup("rpm")
	assert.NoError(t, err)
}

func TestStore_FetchFailureKeepsPreviousSnapshot(t *testing.T) {
	store := NewStore()
	_, err := store.Load(context.Background(), MapSource{"rpm.json": []byte(rpmDoc)})
	assert.NoError(t, err)

	_, err = store.Load(context.Background(), failingSource{})
	assert.Error(t, err)

	doc, err := store.Lookup("rpm")
	assert.NoError(t, err, "Previous snapshot should survive a failed reload")
	assert.Equal(t, "rpm", doc.ServiceKey)
}

func TestStore_ReloadSwapsWholeSet(t *testing.T) {
	store := NewStore()
	_, err := store.Load(context.Background(), MapSource{"rpm.json": []byte(rpmDoc)})
	assert.NoError(t, err)

	_, err = store.Load(context.Background(), MapSource{"telehealth.json": []byte(telehealthDoc)})
	assert.NoError(t, err)

	_, err = store.Lookup("rpm")
	assert.ErrorIs(t, err, models.ErrRuleNotFound, "Reload replaces, not merges")
	_, err = store.Lookup("telehealth")
	assert.NoError(t, err)
}

func TestStore_LoadEmptySource(t *testing.T) {
	store := NewStore()
	_, err := store.Load(context.Background(), MapSource{})
	assert.ErrorIs(t, err, models.ErrNoRuleDocuments)
}

func TestParseDocument_NormalizesUnknownTypes(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"service_key": "wellness",
		"requirements": [{"name": "goals", "required": true, "type": "regex_match"}]
	}`))

	assert.NoError(t, err)
	assert.Equal(t, models.RequirementExists, doc.Requirements[0].Type)
}

func TestParseDocument_RejectsMissingServiceKey(t *testing.T) {
	_, err := ParseDocument([]byte(`{"display_name": "No Key"}`))
	assert.ErrorIs(t, err, models.ErrEmptyServiceKey)
}

func TestDirSource_ReadsRuleFiles(t *testing.T) {
	docs, err := DirSource{Dir: "../../../rules"}.FetchDocuments(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, docs)
	assert.Contains(t, docs, "rpm_eligibility.json")
	assert.Contains(t, docs, "emergency_screening.json")

	store := NewStore()
	outcomes, err := store.Load(context.Background(), DirSource{Dir: "../../../rules"})
	assert.NoError(t, err)
	for _, o := range outcomes {
		assert.NoError(t, o.Err, "Shipped rule file %s should parse", o.Name)
	}
	_, err = store.Lookup("emergency")
	assert.NoError(t, err)
}
