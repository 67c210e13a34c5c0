// Package ai provides the AI client interface and implementations.
package ai

import (
	"sort"
	"strings"

	"github.com/deploy-doctor/internal/domain"
)

// Schema is the structured-output declaration attached to every request.
// It uses the OpenAPI subset understood by Gemini; JSONSchema converts it
// for OpenAI-compatible providers. It declares the same contract the
// validate tags on the domain types enforce.
type Schema struct {
	Type             string             `json:"type"`
	Description      string             `json:"description,omitempty"`
	Properties       map[string]*Schema `json:"properties,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
	Items            *Schema            `json:"items,omitempty"`
	MinItems         int                `json:"minItems,omitempty"`
	Required         []string           `json:"required,omitempty"`
}

const (
	typeObject = "OBJECT"
	typeArray  = "ARRAY"
	typeString = "STRING"
)

func str(desc string) *Schema {
	return &Schema{Type: typeString, Description: desc}
}

// arrayOf declares a non-empty array.
func arrayOf(items *Schema, desc string) *Schema {
	return &Schema{Type: typeArray, Items: items, MinItems: 1, Description: desc}
}

func object(order []string, props map[string]*Schema, required ...string) *Schema {
	return &Schema{
		Type:             typeObject,
		Properties:       props,
		PropertyOrdering: order,
		Required:         required,
	}
}

var fileFixSchema = object(
	[]string{"explanation", "solution", "files"},
	map[string]*Schema{
		"explanation": str("Why the error occurred."),
		"solution":    str("Step-by-step instructions to fix it."),
		"files": arrayOf(object(
			[]string{"name", "language", "content"},
			map[string]*Schema{
				"name":     str("File name, e.g. Dockerfile."),
				"language": str("Syntax of the file, e.g. dockerfile, yaml."),
				"content":  str("Complete file content."),
			},
			"name", "language", "content",
		), "Files to create or replace."),
	},
	"explanation", "solution", "files",
)

var logDiagnosisSchema = object(
	[]string{"diagnosis", "probableCauses", "suggestedFixes"},
	map[string]*Schema{
		"diagnosis":      str("Short summary of the failure."),
		"probableCauses": arrayOf(str(""), "Probable causes, most likely first."),
		"suggestedFixes": arrayOf(object(
			[]string{"title", "description", "code"},
			map[string]*Schema{
				"title":       str("Short name of the fix."),
				"description": str("What to change and why."),
				"code":        str("Optional command or config snippet."),
			},
			"title", "description",
		), "Fixes in the order they should be tried."),
	},
	"diagnosis", "probableCauses", "suggestedFixes",
)

// ResponseSchema returns the declared output schema for a variant.
func ResponseSchema(v domain.Variant) (*Schema, bool) {
	switch v {
	case domain.VariantFileFix:
		return fileFixSchema, true
	case domain.VariantLogDiagnosis:
		return logDiagnosisSchema, true
	}
	return nil, false
}

// JSONSchema renders the schema as a JSON Schema document usable in strict
// mode: every property is listed in required and optional ones accept null.
func (s *Schema) JSONSchema() map[string]any {
	return s.jsonSchema(false)
}

func (s *Schema) jsonSchema(nullable bool) map[string]any {
	typ := strings.ToLower(s.Type)
	out := map[string]any{"type": typ}
	if nullable {
		out["type"] = []string{typ, "null"}
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		required := make(map[string]bool, len(s.Required))
		for _, name := range s.Required {
			required[name] = true
		}

		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.jsonSchema(!required[name])
		}
		out["properties"] = props
		out["additionalProperties"] = false
		out["required"] = s.propertyNames()
	}
	if s.Items != nil {
		out["items"] = s.Items.jsonSchema(false)
	}
	if s.MinItems > 0 {
		out["minItems"] = s.MinItems
	}
	return out
}

// propertyNames lists properties in declared order, then any left unordered.
func (s *Schema) propertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range s.PropertyOrdering {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
