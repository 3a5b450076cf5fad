package manifest

import (
	"errors"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
version: 1
services:
  - key: svc-a
    name: Service A
    description: primary API
    tier: critical
    link: https://runbooks.example.com/svc-a
  - key: svc-b
    name: Service B
aliases:
  - key: alias-pg
    alias: postgres96
    canonical: postgresql
overrides:
  - key: ovr-db
    canonical: postgresql
    display_name: Main DB
associations:
  - key: asc-1
    dependency: postgresql
    service: svc-a
`

func TestParseValidManifest(t *testing.T) {
	doc, warnings, err := Parse([]byte(validManifest))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, doc.Services, 2)
	assert.Equal(t, "svc-a", doc.Services[0].Key)
	assert.Equal(t, "Service A", doc.Services[0].Name)
	assert.Equal(t, "critical", doc.Services[0].Tier)
	require.Len(t, doc.Aliases, 1)
	assert.Equal(t, "postgres96", doc.Aliases[0].Alias)
	require.Len(t, doc.Overrides, 1)
	require.Len(t, doc.Associations, 1)
}

func TestParseAcceptsJSON(t *testing.T) {
	doc, _, err := Parse([]byte(`{"version": 1, "services": [{"key": "svc-a", "name": "A"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Services, 1)
}

func TestParseUnknownTopLevelFieldIsWarning(t *testing.T) {
	doc, warnings, err := Parse([]byte(`
version: 1
services:
  - key: svc-a
    name: A
healthchecks:
  - url: https://example.com
`))
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "healthchecks")
}

func TestParseDuplicateKeyWithinKind(t *testing.T) {
	_, _, err := Parse([]byte(`
services:
  - key: svc-a
    name: A
  - key: svc-a
    name: B
`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Violations[0], `duplicate key "svc-a"`)
}

func TestParseCollectsAllViolations(t *testing.T) {
	_, _, err := Parse([]byte(`
services:
  - key: svc-a
  - name: no key
aliases:
  - key: alias-1
    alias: a1
  - key: alias-1
    alias: a1
    canonical: c1
`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	// missing name, missing key, missing canonical, duplicate key, duplicate alias
	assert.GreaterOrEqual(t, len(verr.Violations), 4)
}

func TestParseNotYAML(t *testing.T) {
	_, _, err := Parse([]byte("{{{"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestValidateServiceRefs(t *testing.T) {
	doc := &Document{
		Services: []ServiceSpec{{Key: "svc-a", Name: "A"}},
		Associations: []AssociationSpec{
			{Key: "asc-1", Dependency: "redis", Service: "svc-a"},
			{Key: "asc-2", Dependency: "redis", Service: "svc-existing"},
			{Key: "asc-3", Dependency: "redis", Service: "svc-missing"},
		},
	}

	err := ValidateServiceRefs(doc, mapset.NewSet("svc-existing"))
	require.NotNil(t, err)
	require.Len(t, err.Violations, 1)
	assert.Contains(t, err.Violations[0], "svc-missing")

	assert.Nil(t, ValidateServiceRefs(doc, mapset.NewSet("svc-existing", "svc-missing")))
}
