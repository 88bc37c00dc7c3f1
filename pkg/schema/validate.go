package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/docbridge/pkg/domain"
)

// Schema maps attribute keys to their expected types.
type Schema map[string]Type

// Validate checks attrs against the schema and reports every failure at once.
func Validate(schema Schema, attrs map[string]any) error {
	var errs []error
	for _, key := range sortedKeys(schema) {
		t := schema[key]
		value, exists := attrs[key]
		if !exists || value == nil {
			if !IsOptional(t) {
				errs = append(errs, &ValidationError{Key: key, Reason: "required"})
			}
			continue
		}
		if err := t.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ParseTypeMap converts a map of attribute keys to type strings into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}

// Registry holds one Schema per node type.
type Registry map[string]Schema

// ParseRegistry builds a Registry from configuration, keyed by node type.
func ParseRegistry(types map[string]map[string]string) (Registry, error) {
	r := make(Registry, len(types))
	for typ, typeMap := range types {
		s, err := ParseTypeMap(typeMap)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", typ, err)
		}
		r[typ] = s
	}
	return r, nil
}

// CheckNode validates n and its descendants against the schema of their type.
// Failures wrap domain.ErrInvalidOperation.
func (r Registry) CheckNode(n *domain.Node) error {
	if len(r) == 0 || n == nil {
		return nil
	}
	var errs []error
	var walk func(path string, n *domain.Node)
	walk = func(path string, n *domain.Node) {
		if s, ok := r[n.Type()]; ok {
			if err := Validate(s, n.Attrs); err != nil {
				errs = append(errs, fmt.Errorf("%s (%s): %w", path, n.Type(), err))
			}
		}
		for _, child := range n.Items {
			if child != nil {
				walk(path+domain.PathSeparator+child.Name, child)
			}
		}
	}
	walk(n.Name, n)

	if len(errs) > 0 {
		return fmt.Errorf("%w: schema violation: %w", domain.ErrInvalidOperation, errors.Join(errs...))
	}
	return nil
}

func sortedKeys(s Schema) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
