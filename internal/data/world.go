package data

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// ObjectSpawn is one editor-placed object in a world template. Positions are
// local to the world origin.
type ObjectSpawn struct {
	Key    string  `yaml:"key"`
	Prefab string  `yaml:"prefab"`
	X      float32 `yaml:"x"`
	Y      float32 `yaml:"y"`
	Z      float32 `yaml:"z"`
}

func (o ObjectSpawn) Position() mgl32.Vec3 { return mgl32.Vec3{o.X, o.Y, o.Z} }

// EntranceSpawn is a named arrival point inside a world.
type EntranceSpawn struct {
	ID string  `yaml:"id"`
	X  float32 `yaml:"x"`
	Y  float32 `yaml:"y"`
	Z  float32 `yaml:"z"`
}

func (e EntranceSpawn) Position() mgl32.Vec3 { return mgl32.Vec3{e.X, e.Y, e.Z} }

// WorldTemplate describes a loadable world. Name is the resource identifier
// used for lookups, persistence and duplicate-load detection.
type WorldTemplate struct {
	Name      string          `yaml:"name"`
	Title     string          `yaml:"title"`
	Objects   []ObjectSpawn   `yaml:"objects"`
	Entrances []EntranceSpawn `yaml:"entrances"`
}

type worldListFile struct {
	Worlds []WorldTemplate `yaml:"worlds"`
}

// WorldTable indexes world templates by name.
type WorldTable struct {
	worlds map[string]*WorldTemplate
}

// LoadWorldTable loads world_list.yaml.
func LoadWorldTable(path string) (*WorldTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world list %s: %w", path, err)
	}
	return ParseWorldTable(raw)
}

// ParseWorldTable builds a table from YAML bytes. Template names must be
// non-empty and unique, and object keys unique within a template.
func ParseWorldTable(raw []byte) (*WorldTable, error) {
	var file worldListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse world list: %w", err)
	}
	t := &WorldTable{worlds: make(map[string]*WorldTemplate, len(file.Worlds))}
	for i := range file.Worlds {
		w := &file.Worlds[i]
		if w.Name == "" {
			return nil, fmt.Errorf("world #%d: empty name", i)
		}
		if _, dup := t.worlds[w.Name]; dup {
			return nil, fmt.Errorf("world %q: duplicate name", w.Name)
		}
		keys := make(map[string]struct{}, len(w.Objects))
		for _, o := range w.Objects {
			if _, dup := keys[o.Key]; dup || o.Key == "" {
				return nil, fmt.Errorf("world %q: bad object key %q", w.Name, o.Key)
			}
			keys[o.Key] = struct{}{}
		}
		t.worlds[w.Name] = w
	}
	return t, nil
}

// Get returns the template with the given name, or nil.
func (t *WorldTable) Get(name string) *WorldTemplate {
	return t.worlds[name]
}

// Names returns all template names sorted.
func (t *WorldTable) Names() []string {
	out := make([]string, 0, len(t.worlds))
	for n := range t.worlds {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (t *WorldTable) Count() int {
	return len(t.worlds)
}

// Templates returns every template ordered by name.
func (t *WorldTable) Templates() []*WorldTemplate {
	names := t.Names()
	out := make([]*WorldTemplate, 0, len(names))
	for _, n := range names {
		out = append(out, t.worlds[n])
	}
	return out
}

// MarshalWorldTable encodes templates in the world_list.yaml layout.
func MarshalWorldTable(templates []*WorldTemplate) ([]byte, error) {
	file := worldListFile{Worlds: make([]WorldTemplate, 0, len(templates))}
	for _, w := range templates {
		file.Worlds = append(file.Worlds, *w)
	}
	return yaml.Marshal(&file)
}
