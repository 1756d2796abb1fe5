package story

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

// DefaultKey is the fallback key for greeting lookups.
const DefaultKey = "default"

// Library is the static narrative content: paths, scene choice tables and greetings.
type Library struct {
	Paths     []StoryPath                  `yaml:"paths"`
	Scenes    map[string][]Choice          `yaml:"scenes"`
	Greetings map[string]map[string]string `yaml:"greetings"`
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// DefaultLibrary returns the built-in content library.
func DefaultLibrary() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = LoadLibrary(defaultContent)
	})
	return defaultLib, defaultErr
}

// LoadLibrary parses YAML story content.
func LoadLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("story content: %w", err)
	}
	if err := lib.validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

func (l *Library) validate() error {
	paths := make(map[string]bool, len(l.Paths))
	for _, p := range l.Paths {
		if p.ID == "" {
			return fmt.Errorf("story content: path without id")
		}
		if paths[p.ID] {
			return fmt.Errorf("story content: duplicate path %q", p.ID)
		}
		paths[p.ID] = true
	}
	locked := make(map[string]bool)
	for scene, choices := range l.Scenes {
		ids := make(map[string]bool, len(choices))
		for _, c := range choices {
			if c.ID == "" {
				return fmt.Errorf("story content: scene %s has a choice without id", scene)
			}
			if ids[c.ID] {
				return fmt.Errorf("story content: scene %s has duplicate choice %q", scene, c.ID)
			}
			ids[c.ID] = true
			locked[c.ID] = locked[c.ID] || c.Locked
			if c.PathID != "" && !paths[c.PathID] {
				return fmt.Errorf("story content: choice %s references unknown path %q", c.ID, c.PathID)
			}
		}
	}
	for _, p := range l.Paths {
		for _, id := range p.Consequences.FutureChoicesUnlocked {
			if !locked[id] {
				return fmt.Errorf("story content: path %s unlocks %q, which is not a locked choice", p.ID, id)
			}
		}
	}
	return nil
}

// Path returns the path with the given id.
func (l *Library) Path(id string) (StoryPath, bool) {
	for _, p := range l.Paths {
		if p.ID == id {
			return p, true
		}
	}
	return StoryPath{}, false
}

// Choice looks up a choice within a scene.
func (l *Library) Choice(sceneKey, choiceID string) (Choice, bool) {
	for _, c := range l.Scenes[sceneKey] {
		if c.ID == choiceID {
			return c, true
		}
	}
	return Choice{}, false
}

// Greeting returns Cha Hae-In's greeting for a location and activity. Unknown activities
// fall back to the location default, unknown locations to the global default.
func (l *Library) Greeting(location, activity string) string {
	if byActivity, ok := l.Greetings[location]; ok {
		if text, ok := byActivity[activity]; ok {
			return text
		}
		if text, ok := byActivity[DefaultKey]; ok {
			return text
		}
	}
	if text, ok := l.Greetings[DefaultKey][DefaultKey]; ok {
		return text
	}
	return "..."
}
