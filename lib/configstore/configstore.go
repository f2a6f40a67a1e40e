// Package configstore persists worknight settings as a nested YAML tree
// addressed by arbitrary-depth key paths. A packaged default document is
// overlaid by a per-user document; only the user document is ever written
// back, and writing preserves the comments and key order of everything the
// process did not touch.
package configstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

var (
	// ErrKeyNotFound is returned by Get when a path segment does not exist.
	ErrKeyNotFound = errors.New("configuration key not found")
	// ErrNotAMapping is returned when a path tries to descend into a scalar.
	ErrNotAMapping = errors.New("cannot descend into a non-mapping value")
)

// Store owns the merged configuration tree for the process lifetime.
type Store struct {
	defaults map[string]any
	userDoc  *yaml.Node
	userPath string
	dirty    bool
}

// DefaultUserPath resolves the per-user configuration file location.
func DefaultUserPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("worknight", "config.yaml"))
}

// Load parses the packaged default document and overlays the user document
// found at userPath. A missing user file means "no overrides". The user
// document is kept as a yaml node graph so Save can round-trip comments.
func Load(defaults []byte, userPath string) (*Store, error) {
	s := &Store{userPath: userPath}

	if len(defaults) > 0 {
		if err := yaml.Unmarshal(defaults, &s.defaults); err != nil {
			return nil, fmt.Errorf("parse default configuration: %w", err)
		}
	}

	raw, err := os.ReadFile(userPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read user configuration: %w", err)
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		var doc yaml.Node
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse user configuration %s: %w", userPath, err)
		}
		s.userDoc = &doc
	}
	if s.userDoc == nil || len(s.userDoc.Content) == 0 {
		s.userDoc = &yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{{
				Kind: yaml.MappingNode,
				Tag:  "!!map",
			}},
		}
	}
	if s.userDoc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse user configuration %s: top level is not a mapping", userPath)
	}

	return s, nil
}

// Effective returns the merged view of defaults and user overrides.
// Mappings overlay recursively; everything else, including values whose
// shape differs between the two documents, is replaced wholesale by the
// override.
func (s *Store) Effective() (map[string]any, error) {
	merged := map[string]any{}
	if err := mergo.Merge(&merged, s.defaults, mergo.WithOverride); err != nil {
		return nil, err
	}

	var user map[string]any
	if err := s.userDoc.Content[0].Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user configuration: %w", err)
	}
	if err := mergo.Merge(&merged, user, mergo.WithOverride); err != nil {
		return nil, err
	}
	return merged, nil
}

// Get traverses the merged tree along path and returns the value found
// there. With no path it returns the whole merged tree.
func (s *Store) Get(path ...string) (any, error) {
	eff, err := s.Effective()
	if err != nil {
		return nil, err
	}

	var current any = eff
	for i, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %w", strings.Join(path[:i], "."), ErrNotAMapping)
		}
		current, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("%s: %w", strings.Join(path[:i+1], "."), ErrKeyNotFound)
		}
	}
	return current, nil
}

// GetString is Get for string-valued leaves.
func (s *Store) GetString(path ...string) (string, error) {
	v, err := s.Get(path...)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected a string, got %T", strings.Join(path, "."), v)
	}
	return str, nil
}

// Preferences flattens browser_configuration.<browser>.preferences into a
// plain mapping handed opaquely to the driver. An unconfigured browser
// yields an empty mapping, not an error.
func (s *Store) Preferences(browser string) (map[string]any, error) {
	v, err := s.Get("browser_configuration", browser, "preferences")
	if errors.Is(err, ErrKeyNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	prefs, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("browser_configuration.%s.preferences: %w", browser, ErrNotAMapping)
	}
	return prefs, nil
}

// Set assigns value at path in the user document, creating intermediate
// mappings as needed, and marks the store dirty. A prefix that currently
// resolves to a scalar fails with ErrNotAMapping.
func (s *Store) Set(path []string, value any) error {
	if len(path) == 0 {
		return errors.New("empty configuration path")
	}

	node := s.userDoc.Content[0]
	for i, key := range path[:len(path)-1] {
		child := childValue(node, key)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				child,
			)
		}
		if child.Kind == yaml.AliasNode {
			child = child.Alias
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("%s: %w", strings.Join(path[:i+1], "."), ErrNotAMapping)
		}
		node = child
	}

	leaf := path[len(path)-1]
	fresh := &yaml.Node{}
	if err := fresh.Encode(value); err != nil {
		return fmt.Errorf("encode value for %s: %w", strings.Join(path, "."), err)
	}

	if existing := childValue(node, leaf); existing != nil {
		// keep the comments attached to the node being replaced
		fresh.HeadComment = existing.HeadComment
		fresh.LineComment = existing.LineComment
		fresh.FootComment = existing.FootComment
		*existing = *fresh
	} else {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: leaf},
			fresh,
		)
	}

	s.dirty = true
	return nil
}

// Dirty reports whether there are unsaved changes.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Save serializes the user document back to its file, preserving comment
// and ordering metadata on untouched nodes. No-op when the store is clean.
func (s *Store) Save() error {
	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.userPath), 0o755); err != nil {
		return fmt.Errorf("create configuration directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s.userDoc); err != nil {
		return fmt.Errorf("serialize user configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("serialize user configuration: %w", err)
	}

	tmp := s.userPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write user configuration: %w", err)
	}
	if err := os.Rename(tmp, s.userPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write user configuration: %w", err)
	}

	s.dirty = false
	return nil
}

// childValue finds the value node for key in a mapping node.
func childValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
