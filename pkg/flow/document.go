package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the wire form of a flow definition.
type Document struct {
	FlowID  string         `json:"flow_id" yaml:"flow_id"`
	Name    string         `json:"name" yaml:"name"`
	Version string         `json:"version" yaml:"version"`
	Nodes   []NodeDocument `json:"nodes" yaml:"nodes"`
}

// NodeDocument is the wire form of a node.
// Params is decoded into the typed per-variant config by Load; keys a
// variant does not know are rejected there.
type NodeDocument struct {
	ID       string           `json:"id" yaml:"id"`
	Type     string           `json:"type" yaml:"type"`
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Next     string           `json:"next,omitempty" yaml:"next,omitempty"`
	Approver string           `json:"approver,omitempty" yaml:"approver,omitempty"`
	Params   map[string]any   `json:"params,omitempty" yaml:"params,omitempty"`
	Branches []BranchDocument `json:"branches,omitempty" yaml:"branches,omitempty"`
}

// BranchDocument is the wire form of one routing rule.
type BranchDocument struct {
	Condition string `json:"condition" yaml:"condition"`
	Next      string `json:"next" yaml:"next"`
}

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the format from a file extension. Unknown extensions default to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".hcl":
		return FormatHCL
	default:
		return FormatJSON
	}
}

// Parse decodes a document. Unknown keys are an error in every format.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode json flow: %w", err)
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, errors.New("failed to decode json flow: unexpected content after the document")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode yaml flow: %w", err)
		}
		var extra yaml.Node
		if err := dec.Decode(&extra); err != io.EOF {
			return nil, errors.New("failed to decode yaml flow: unexpected content after the document")
		}
	case FormatHCL:
		return parseHCL(data)
	default:
		return nil, fmt.Errorf("unsupported flow format %q", format)
	}
	return &doc, nil
}

// Marshal encodes a document.
func Marshal(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatHCL:
		return marshalHCL(doc), nil
	default:
		return nil, fmt.Errorf("unsupported flow format %q", format)
	}
}
