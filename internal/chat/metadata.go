package chat

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
	"gorm.io/datatypes"
)

// MetadataSchemaVersion is the current chat message metadata schema.
// The schema itself lives in metadata_schema.json; every metadata document
// is validated against it before it reaches the database.
const MetadataSchemaVersion = 1

//go:embed metadata_schema.json
var metadataSchemaJSON []byte

var metadataSchema = mustCompileMetadataSchema()

// MessageMetadata is the typed metadata attached to every chat message.
// Version 1 carries only the client-observed timestamp.
type MessageMetadata struct {
	SchemaVersion int       `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
}

func mustCompileMetadataSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(metadataSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("chat: invalid embedded metadata schema: %v", err))
	}
	return schema
}

// encodeMetadata serializes metadata for the given moment and validates it
// against the versioned schema before it is written.
func encodeMetadata(at time.Time) (datatypes.JSON, error) {
	meta := MessageMetadata{
		SchemaVersion: MetadataSchemaVersion,
		Timestamp:     at.UTC(),
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for validation: %w", err)
	}
	if err := validateMetadata(doc); err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

// validateMetadata checks a metadata document against the embedded schema
func validateMetadata(doc map[string]interface{}) error {
	result := metadataSchema.Validate(doc)
	if !result.IsValid() {
		var errorMessages []string
		for field, evalErr := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return fmt.Errorf("metadata validation failed: %s", strings.Join(errorMessages, "; "))
	}
	return nil
}
