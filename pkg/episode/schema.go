package episode

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed episode.schema.json
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("episode.schema.json", schemaSource)
	})
	return schema, schemaErr
}

// Parse validates raw episode JSON against the episode schema and decodes it.
func Parse(data []byte) (*Episode, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile episode schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid episode JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("episode does not match schema: %w", err)
	}

	var ep Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episode: %w", err)
	}
	if err := ep.checkBeats(); err != nil {
		return nil, err
	}
	return &ep, nil
}

func (e *Episode) checkBeats() error {
	seen := make(map[int]bool, len(e.Beats))
	for _, b := range e.Beats {
		if seen[b.ID] {
			return fmt.Errorf("episode %s: duplicate beat id %d", e.ID, b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}
