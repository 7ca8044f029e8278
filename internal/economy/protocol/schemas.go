package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	names := []string{
		TypeInitClientData,
		TypeInitCharacterData,
		TypeItemsUpdated,
		TypeMarketListingsUpdated,
		TypeMarketItemOrderBooksUpdated,
		TypeNewBattle,
		TypeBattleConsumableAbilityUpdated,
		TypeQuestsUpdated,
		TypeActionsUpdated,
		TypeConsumableSlotsUpdated,
		TypeCommunityBuffsUpdated,
		TypeHouseRoomsUpdated,
		TypeSkillsUpdated,
	}
	for _, name := range names {
		file := name + ".schema.json"
		b, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			schemaErr = fmt.Errorf("reading schema %s: %w", file, err)
			return
		}
		if err := c.AddResource(file, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("adding schema %s: %w", file, err)
			return
		}
	}

	compiled := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(name + ".schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("compiling schema %s: %w", name, err)
			return
		}
		compiled[name] = s
	}
	schemas = compiled
}

// Validate checks payload against the schema registered for msgType. Types
// without a schema pass.
func Validate(msgType string, payload []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s, ok := schemas[msgType]
	if !ok {
		return nil
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, msgType, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, msgType, err)
	}
	return nil
}
