package world

import "sort"

// WorldStore holds the layer -> World mapping. Layers are sparse after
// removals.
type WorldStore interface {
	Insert(layer int, w *World)
	Remove(layer int)
	Get(layer int) (*World, bool)
	Len() int
	// Layers returns occupied layers in ascending order.
	Layers() []int
}

// MapStore is the default map-backed WorldStore.
type MapStore struct {
	worlds map[int]*World
}

func NewMapStore() *MapStore {
	return &MapStore{worlds: make(map[int]*World, 4)}
}

func (s *MapStore) Insert(layer int, w *World) { s.worlds[layer] = w }
func (s *MapStore) Remove(layer int)           { delete(s.worlds, layer) }

func (s *MapStore) Get(layer int) (*World, bool) {
	w, ok := s.worlds[layer]
	return w, ok
}

func (s *MapStore) Len() int { return len(s.worlds) }

func (s *MapStore) Layers() []int {
	out := make([]int, 0, len(s.worlds))
	for l := range s.worlds {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// FirstFreeLayer returns the smallest non-negative layer not in s.
func FirstFreeLayer(s WorldStore) int {
	layer := 0
	for {
		if _, taken := s.Get(layer); !taken {
			return layer
		}
		layer++
	}
}
