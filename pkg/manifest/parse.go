package manifest

import (
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	k8syaml "k8s.io/apimachinery/pkg/util/yaml"
)

// knownTopLevelFields are the document fields the parser understands.
// Anything else is reported as a warning, never an error.
var knownTopLevelFields = mapset.NewSet(
	"version", "services", "aliases", "overrides", "associations",
)

// Parse decodes manifest bytes (YAML or JSON) into a Document and validates
// its structure. It returns the document, a list of non-blocking warnings,
// and a *ValidationError carrying every violation when the document is
// unusable.
func Parse(data []byte) (*Document, []string, error) {
	jsonData, err := k8syaml.ToJSON(data)
	if err != nil {
		return nil, nil, &ValidationError{Violations: []string{fmt.Sprintf("document is not valid YAML or JSON: %v", err)}}
	}

	var doc Document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, nil, &ValidationError{Violations: []string{fmt.Sprintf("document does not match the manifest schema: %v", err)}}
	}

	warnings := unknownFieldWarnings(jsonData)

	if violations := validate(&doc); len(violations) > 0 {
		return nil, warnings, &ValidationError{Violations: violations}
	}
	return &doc, warnings, nil
}

// unknownFieldWarnings flags top-level fields the schema does not define.
func unknownFieldWarnings(jsonData []byte) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil
	}
	var warnings []string
	for field := range raw {
		if !knownTopLevelFields.Contains(field) {
			warnings = append(warnings, fmt.Sprintf("unknown manifest field %q ignored", field))
		}
	}
	return warnings
}

// validate collects every structural violation in the document: missing
// required fields, duplicate manifest keys within a kind, and duplicate
// natural keys within a kind.
func validate(doc *Document) []string {
	var violations []string

	serviceKeys := mapset.NewSet[string]()
	for i, svc := range doc.Services {
		if svc.Key == "" {
			violations = append(violations, fmt.Sprintf("services[%d]: missing key", i))
			continue
		}
		if svc.Name == "" {
			violations = append(violations, fmt.Sprintf("services[%d] (%s): missing name", i, svc.Key))
		}
		if !serviceKeys.Add(svc.Key) {
			violations = append(violations, fmt.Sprintf("services[%d]: duplicate key %q", i, svc.Key))
		}
	}

	aliasKeys := mapset.NewSet[string]()
	aliasNames := mapset.NewSet[string]()
	for i, a := range doc.Aliases {
		if a.Key == "" {
			violations = append(violations, fmt.Sprintf("aliases[%d]: missing key", i))
			continue
		}
		if a.Alias == "" {
			violations = append(violations, fmt.Sprintf("aliases[%d] (%s): missing alias", i, a.Key))
		}
		if a.Canonical == "" {
			violations = append(violations, fmt.Sprintf("aliases[%d] (%s): missing canonical", i, a.Key))
		}
		if !aliasKeys.Add(a.Key) {
			violations = append(violations, fmt.Sprintf("aliases[%d]: duplicate key %q", i, a.Key))
		}
		if a.Alias != "" && !aliasNames.Add(a.Alias) {
			violations = append(violations, fmt.Sprintf("aliases[%d]: duplicate alias %q", i, a.Alias))
		}
	}

	overrideKeys := mapset.NewSet[string]()
	overrideNames := mapset.NewSet[string]()
	for i, o := range doc.Overrides {
		if o.Key == "" {
			violations = append(violations, fmt.Sprintf("overrides[%d]: missing key", i))
			continue
		}
		if o.Canonical == "" {
			violations = append(violations, fmt.Sprintf("overrides[%d] (%s): missing canonical", i, o.Key))
		}
		if o.DisplayName == "" {
			violations = append(violations, fmt.Sprintf("overrides[%d] (%s): missing display_name", i, o.Key))
		}
		if !overrideKeys.Add(o.Key) {
			violations = append(violations, fmt.Sprintf("overrides[%d]: duplicate key %q", i, o.Key))
		}
		if o.Canonical != "" && !overrideNames.Add(o.Canonical) {
			violations = append(violations, fmt.Sprintf("overrides[%d]: duplicate canonical %q", i, o.Canonical))
		}
	}

	assocKeys := mapset.NewSet[string]()
	assocPairs := mapset.NewSet[string]()
	for i, asc := range doc.Associations {
		if asc.Key == "" {
			violations = append(violations, fmt.Sprintf("associations[%d]: missing key", i))
			continue
		}
		if asc.Dependency == "" {
			violations = append(violations, fmt.Sprintf("associations[%d] (%s): missing dependency", i, asc.Key))
		}
		if asc.Service == "" {
			violations = append(violations, fmt.Sprintf("associations[%d] (%s): missing service", i, asc.Key))
		}
		if !assocKeys.Add(asc.Key) {
			violations = append(violations, fmt.Sprintf("associations[%d]: duplicate key %q", i, asc.Key))
		}
		if asc.Dependency != "" && asc.Service != "" &&
			!assocPairs.Add(AssociationNaturalKey(asc.Dependency, asc.Service)) {
			violations = append(violations, fmt.Sprintf(
				"associations[%d]: duplicate pair (%s, %s)", i, asc.Dependency, asc.Service))
		}
	}

	return violations
}

// ValidateServiceRefs checks that every association references a service key
// declared in the document or present in knownKeys (the team's persisted
// manifest keys). It runs after the state snapshot is read, still before any
// mutation.
func ValidateServiceRefs(doc *Document, knownKeys mapset.Set[string]) *ValidationError {
	declared := mapset.NewSet[string]()
	for _, svc := range doc.Services {
		declared.Add(svc.Key)
	}

	var violations []string
	for i, asc := range doc.Associations {
		if declared.Contains(asc.Service) || knownKeys.Contains(asc.Service) {
			continue
		}
		violations = append(violations, fmt.Sprintf(
			"associations[%d] (%s): unknown service key %q", i, asc.Key, asc.Service))
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
