// Package script holds the dialogue script a responder answers from: an
// explicit set of nodes keyed by the normalized message that reaches them.
package script

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// Node is one reply of the script. Options lists the follow-ups the text is
// written to offer; they are not sent on the wire.
type Node struct {
	ID       string   `yaml:"id"`
	Triggers []string `yaml:"triggers"`
	Text     string   `yaml:"text"`
	Options  []string `yaml:"options,omitempty"`
}

type Script struct {
	Version  int    `yaml:"version"`
	Fallback string `yaml:"fallback"`
	Nodes    []Node `yaml:"nodes"`

	byTrigger map[string]int
	byID      map[string]int
}

// Parse decodes and validates a YAML script document.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseFile reads a script document from disk.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %q: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in MediBridge FAQ script.
func Default() *Script {
	s, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("script: built-in document is invalid: %v", err))
	}
	return s
}

func (s *Script) index() error {
	if strings.TrimSpace(s.Fallback) == "" {
		return errors.New("script: fallback must not be empty")
	}
	if len(s.Nodes) == 0 {
		return errors.New("script: at least one node is required")
	}
	s.byTrigger = make(map[string]int)
	s.byID = make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			return fmt.Errorf("script: node %d has no id", i)
		}
		if _, dup := s.byID[id]; dup {
			return fmt.Errorf("script: duplicate node id %q", id)
		}
		if strings.TrimSpace(n.Text) == "" {
			return fmt.Errorf("script: node %q has no text", id)
		}
		if len(n.Triggers) == 0 {
			return fmt.Errorf("script: node %q has no triggers", id)
		}
		s.byID[id] = i
		for _, tr := range n.Triggers {
			key := Normalize(tr)
			if key == "" {
				return fmt.Errorf("script: node %q has an empty trigger", id)
			}
			if other, dup := s.byTrigger[key]; dup {
				return fmt.Errorf("script: trigger %q used by %q and %q", key, s.Nodes[other].ID, id)
			}
			s.byTrigger[key] = i
		}
	}
	// Every offered option must lead somewhere.
	for _, n := range s.Nodes {
		for _, opt := range n.Options {
			if _, ok := s.byTrigger[Normalize(opt)]; !ok {
				return fmt.Errorf("script: node %q offers %q but no node is triggered by it", n.ID, opt)
			}
		}
	}
	return nil
}

// Lookup returns the node reached by message. Messages are compared after
// Normalize.
func (s *Script) Lookup(message string) (Node, bool) {
	i, ok := s.byTrigger[Normalize(message)]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

func (s *Script) Node(id string) (Node, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Normalize is the key form of a message: trimmed and lowercased.
func Normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}
