package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// validator holds the compiled request payload schemas.
type validator struct {
	schemas map[string]*jsonschema.Schema
}

func newValidator() (*validator, error) {
	v := &validator{schemas: make(map[string]*jsonschema.Schema)}
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas dir: %w", err)
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		v.schemas[name] = rs
	}
	return v, nil
}

// validate checks payload against the named schema and returns a message
// listing every violation, or "" when the payload is valid.
func (v *validator) validate(ctx context.Context, name string, payload []byte) (string, error) {
	rs, ok := v.schemas[name]
	if !ok {
		return "", fmt.Errorf("unknown schema %q", name)
	}
	keyErrs, err := rs.ValidateBytes(ctx, payload)
	if err != nil {
		return "invalid JSON payload", nil
	}
	if len(keyErrs) == 0 {
		return "", nil
	}
	msgs := make([]string, 0, len(keyErrs))
	for _, ke := range keyErrs {
		msgs = append(msgs, ke.Message)
	}
	return strings.Join(msgs, "; "), nil
}
