// Package configschema publishes the JSON Schema of the crudkit configuration file.
package configschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nimburion/crudkit/pkg/config"
)

// Draft is the JSON Schema dialect of generated schemas.
const Draft = "https://json-schema.org/draft/2020-12/schema"

var durationType = reflect.TypeOf(time.Duration(0))

// enums lists the closed value sets of the configuration, keyed by dotted setting path.
var enums = map[string][]any{
	"router_type":     {config.RouterTypeNetHTTP, config.RouterTypeGin, config.RouterTypeGorilla},
	"log.level":       {"debug", "info", "warn", "error"},
	"log.format":      {"json", "text"},
	"database.type":   {config.DatabaseTypeMemory, config.DatabaseTypePostgres, config.DatabaseTypeMySQL, config.DatabaseTypeMongoDB},
	"eventbus.type":   {config.EventBusTypeNone, config.EventBusTypeKafka, config.EventBusTypeRabbitMQ},
	"eventbus.format": {"json", "protobuf"},
}

// Build returns the schema of config.Config. Property names follow the mapstructure keys used
// in configuration files and every property carries the value from defaults as its default.
// A nil defaults uses config.DefaultConfig.
func Build(defaults *config.Config) (*jsonschema.Schema, error) {
	if defaults == nil {
		defaults = config.DefaultConfig()
	}
	typ := reflect.TypeOf(config.Config{})
	schema, err := jsonschema.ForType(typ, &jsonschema.ForOptions{
		IgnoreInvalidTypes: true,
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			durationType: {Type: "string", Description: "Go duration, for example 500ms or 30s"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config schema: %w", err)
	}

	rename(schema, typ)
	if err := annotate(schema, reflect.ValueOf(*defaults), ""); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(defaults.Service.Name)
	if name == "" {
		name = "crudkit"
	}
	schema.Schema = Draft
	schema.Title = name + " configuration"
	schema.Description = "Settings accepted by " + name + " in its configuration file. Environment variables override them."
	return schema, nil
}

// JSON renders Build(defaults) as indented JSON.
func JSON(defaults *config.Config) ([]byte, error) {
	schema, err := Build(defaults)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(schema, "", "  ")
}

// rename replaces Go field names with mapstructure keys.
func rename(schema *jsonschema.Schema, t reflect.Type) {
	if schema == nil || t.Kind() != reflect.Struct || len(schema.Properties) == 0 {
		return
	}
	renamed := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		prop, ok := schema.Properties[field.Name]
		if !ok {
			continue
		}
		key := keyOf(field)
		if field.Type == durationType {
			// the type schema may be shared between fields
			copied := *prop
			prop = &copied
		}
		delete(schema.Properties, field.Name)
		schema.Properties[key] = prop
		renamed[field.Name] = key
		rename(prop, field.Type)
	}
	for i, name := range schema.PropertyOrder {
		if key, ok := renamed[name]; ok {
			schema.PropertyOrder[i] = key
		}
	}
}

// annotate sets defaults and enums. Every setting has a default, so nothing is required.
func annotate(schema *jsonschema.Schema, value reflect.Value, path string) error {
	schema.Required = nil
	if values, ok := enums[path]; ok {
		schema.Enum = values
	}
	if value.Kind() == reflect.Struct {
		t := value.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			prop, ok := schema.Properties[keyOf(field)]
			if !field.IsExported() || !ok {
				continue
			}
			if err := annotate(prop, value.Field(i), join(path, keyOf(field))); err != nil {
				return err
			}
		}
		return nil
	}

	var def any = value.Interface()
	switch {
	case value.Type() == durationType:
		def = time.Duration(value.Int()).String()
	case value.Kind() == reflect.Slice && value.IsNil():
		def = []any{}
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("default for %s: %w", path, err)
	}
	schema.Default = raw
	return nil
}

func keyOf(field reflect.StructField) string {
	if tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(field.Name)
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
