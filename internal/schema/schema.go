// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package schema describes configuration structs using their yaml and docdesc tags.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// ErrNotStruct is returned when the definition is not a struct.
var ErrNotStruct = errors.New("expected struct type")

// Field represents a property in a JSON schema.
type Field struct {
	Name        string           `json:"-"`
	Type        string           `json:"type"`
	Description string           `json:"description,omitempty"`
	Required    bool             `json:"-"`
	Properties  map[string]Field `json:"properties,omitempty"`
	Items       *Field           `json:"items,omitempty"`
	Order       []Field          `json:"-"`
}

// Schema is the JSON schema of one configuration struct.
type Schema struct {
	Title       string
	Description string
	Root        Field
}

// Generate builds the schema of def from its struct tags.
func Generate(title, description string, def any) (*Schema, error) {
	root, err := structField(reflect.TypeOf(def))
	if err != nil {
		return nil, err
	}

	return &Schema{Title: title, Description: description, Root: root}, nil
}

func structField(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return Field{}, fmt.Errorf("%w, got %s", ErrNotStruct, t.Kind())
	}

	f := Field{Type: "object", Properties: make(map[string]Field)}

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		yamlTag := sf.Tag.Get("yaml")
		if yamlTag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(yamlTag, ",")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}

		field, err := typeField(sf.Type)
		if err != nil {
			return Field{}, err
		}

		field.Name = name
		field.Description = sf.Tag.Get("docdesc")
		field.Required = !strings.Contains(opts, "omitempty")

		f.Properties[name] = field
		f.Order = append(f.Order, field)
	}

	return f, nil
}

func typeField(t reflect.Type) (Field, error) {
	switch t.Kind() {
	case reflect.String:
		return Field{Type: "string"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Field{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return Field{Type: "number"}, nil
	case reflect.Bool:
		return Field{Type: "boolean"}, nil
	case reflect.Slice, reflect.Array:
		item, err := typeField(t.Elem())
		if err != nil {
			return Field{}, err
		}

		return Field{Type: "array", Items: &item}, nil
	case reflect.Map:
		return Field{Type: "object"}, nil
	case reflect.Struct:
		return structField(t)
	case reflect.Ptr:
		return typeField(t.Elem())
	default:
		return Field{Type: "string"}, nil
	}
}

func (f Field) property() map[string]any {
	prop := map[string]any{"type": f.Type}

	if f.Description != "" {
		prop["description"] = f.Description
	}

	if f.Items != nil {
		prop["items"] = f.Items.property()
	}

	if len(f.Properties) > 0 {
		props := make(map[string]any, len(f.Properties))

		var required []string

		for _, sub := range f.Order {
			props[sub.Name] = sub.property()

			if sub.Required {
				required = append(required, sub.Name)
			}
		}

		prop["properties"] = props
		prop["additionalProperties"] = false

		if len(required) > 0 {
			prop["required"] = required
		}
	}

	return prop
}

// WriteJSON writes the schema as an indented JSON schema document.
func (s *Schema) WriteJSON(w io.Writer) error {
	doc := s.Root.property()
	doc["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	doc["title"] = s.Title

	if s.Description != "" {
		doc["description"] = s.Description
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(doc) //nolint:wrapcheck
}

// WriteMarkdown writes one section per object with a table of its fields.
func (s *Schema) WriteMarkdown(w io.Writer) error {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "# %s\n\n", s.Title)

	if s.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", s.Description)
	}

	writeSection(&sb, "Root", s.Root)

	_, err := io.WriteString(w, sb.String())

	return err //nolint:wrapcheck
}

func writeSection(sb *strings.Builder, title string, f Field) {
	fmt.Fprintf(sb, "## %s\n\n| Field | Type | Required | Description |\n|---|---|---|---|\n", title)

	var nested []Field

	for _, sub := range f.Order {
		typ := sub.Type
		if sub.Items != nil {
			typ = "array of " + sub.Items.Type
		}

		fmt.Fprintf(sb, "| `%s` | %s | %t | %s |\n", sub.Name, typ, sub.Required, sub.Description)

		switch {
		case len(sub.Properties) > 0:
			nested = append(nested, sub)
		case sub.Items != nil && len(sub.Items.Properties) > 0:
			item := *sub.Items
			item.Name = sub.Name
			nested = append(nested, item)
		}
	}

	sb.WriteString("\n")

	for _, n := range nested {
		writeSection(sb, title+" / "+n.Name, n)
	}
}
