package component

import "sort"

// Tags is a set of string markers read by the render side.
type Tags struct {
	set map[string]struct{}
}

func NewTags(tags ...string) *Tags {
	t := &Tags{set: make(map[string]struct{}, len(tags)+2)}
	for _, s := range tags {
		t.set[s] = struct{}{}
	}
	return t
}

func (t *Tags) Add(tag string) {
	if t.set == nil {
		t.set = make(map[string]struct{}, 2)
	}
	t.set[tag] = struct{}{}
}

func (t *Tags) Remove(tag string) { delete(t.set, tag) }

func (t *Tags) Has(tag string) bool {
	_, ok := t.set[tag]
	return ok
}

// Sorted returns the tags in lexical order.
func (t *Tags) Sorted() []string {
	out := make([]string, 0, len(t.set))
	for s := range t.set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
