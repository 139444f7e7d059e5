package component

// Prefab records which template an entity was cloned from.
// Key is unique within the owning world and is what gets persisted.
type Prefab struct {
	Name string
	Key  string
}
