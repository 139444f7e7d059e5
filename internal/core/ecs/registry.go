package ecs

// Registry tracks component stores for bulk removal on destroy.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{stores: make([]Removable, 0, 8)}
}

func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
}

// RemoveAll drops id from every registered store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
