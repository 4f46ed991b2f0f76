package strategy

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToJSONSchema converts a struct to a JSON schema document.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// DeclarativeConfigSchema returns the JSON schema for the declarative
// strategy config, for editor tooling and agent-generated strategies.
func DeclarativeConfigSchema() (string, error) {
	return ToJSONSchema(DeclarativeConfig{})
}
