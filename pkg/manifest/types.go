// Package manifest defines the team manifest document, its parser and
// validator, and the fetcher that retrieves manifests over HTTP or from a
// git repository under the shared per-host concurrency cap.
package manifest

// Document is the parsed desired state for one sync attempt. It is
// ephemeral: nothing here is persisted, only reconciled against the graph.
type Document struct {
	Version      int               `json:"version"`
	Services     []ServiceSpec     `json:"services"`
	Aliases      []AliasSpec       `json:"aliases"`
	Overrides    []OverrideSpec    `json:"overrides"`
	Associations []AssociationSpec `json:"associations"`
}

// ServiceSpec declares one tracked service. Key is the stable manifest key
// linking the entry to its persisted service across runs.
type ServiceSpec struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        string `json:"tier"`
	Link        string `json:"link"`
}

// Fields returns the manifest-authoritative field values of the spec.
func (s ServiceSpec) Fields() map[string]string {
	return map[string]string{
		"name":        s.Name,
		"description": s.Description,
		"tier":        s.Tier,
		"link":        s.Link,
	}
}

// AliasSpec declares a dependency alias. The alias string is the natural key
// within the team scope.
type AliasSpec struct {
	Key       string `json:"key"`
	Alias     string `json:"alias"`
	Canonical string `json:"canonical"`
}

// OverrideSpec declares a canonical-name override. The canonical name is the
// natural key within the team scope.
type OverrideSpec struct {
	Key         string `json:"key"`
	Canonical   string `json:"canonical"`
	DisplayName string `json:"display_name"`
}

// AssociationSpec links a dependency to a service declared in this document
// (or already persisted for the team) by its manifest key. The
// (dependency, service) pair is the natural key.
type AssociationSpec struct {
	Key        string `json:"key"`
	Dependency string `json:"dependency"`
	Service    string `json:"service"`
}

// AssociationNaturalKey builds the natural key for a (dependency, service
// manifest key) pair.
func AssociationNaturalKey(dependency, serviceKey string) string {
	return dependency + "\x00" + serviceKey
}
