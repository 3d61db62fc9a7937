package taxonomy

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// The serialized taxonomy document is a nested mapping:
//
//	{ "<label>": { "description": "...", "children": { ... } }, ... }
//
// json.Unmarshal into a map would destroy key order, so decoding walks the
// document token by token (JSON) or via yaml.Node (YAML), both of which
// preserve mapping order.

// docEntry is one label → node pair decoded from a document, in source order.
type docEntry struct {
	label string
	node  docNode
}

type docNode struct {
	description    string
	hasDescription bool
	children       []docEntry
}

// Load parses a JSON taxonomy document. Child order follows the document.
func Load(r io.Reader, maxDepth int) (*Tree, error) {
	dec := json.NewDecoder(r)
	entries, err := decodeJSONLevel(dec, nil)
	if err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		return nil, &MalformedTaxonomyError{Reason: eris.Errorf("trailing content %v", tok).Error()}
	}
	return buildTree(entries, maxDepth)
}

// LoadBytes parses a JSON taxonomy document from memory.
func LoadBytes(data []byte, maxDepth int) (*Tree, error) {
	return Load(bytes.NewReader(data), maxDepth)
}

// LoadYAML parses a YAML taxonomy document with the same nested shape.
func LoadYAML(data []byte, maxDepth int) (*Tree, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &MalformedTaxonomyError{Reason: err.Error()}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &MalformedTaxonomyError{Reason: "empty document"}
	}
	entries, err := decodeYAMLLevel(root.Content[0], nil)
	if err != nil {
		return nil, err
	}
	return buildTree(entries, maxDepth)
}

// LoadFile parses a taxonomy document, dispatching on the file extension
// (.yaml/.yml → YAML, anything else → JSON).
func LoadFile(path string, maxDepth int) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: read file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data, maxDepth)
	default:
		return LoadBytes(data, maxDepth)
	}
}

func decodeJSONLevel(dec *json.Decoder, path []string) ([]docEntry, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &MalformedTaxonomyError{Path: path, Reason: "expected object"}
	}

	var entries []docEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
		}
		label, ok := keyTok.(string)
		if !ok || strings.TrimSpace(label) == "" {
			return nil, &MalformedTaxonomyError{Path: path, Reason: "empty label"}
		}
		node, err := decodeJSONNode(dec, append(path, label))
		if err != nil {
			return nil, err
		}
		entries = append(entries, docEntry{label: label, node: node})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
	}
	return entries, nil
}

func decodeJSONNode(dec *json.Decoder, path []string) (docNode, error) {
	var node docNode

	tok, err := dec.Token()
	if err != nil {
		return node, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return node, &MalformedTaxonomyError{Path: path, Reason: "node must be an object"}
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return node, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
		}
		switch key := keyTok.(string); key {
		case "description":
			valTok, err := dec.Token()
			if err != nil {
				return node, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
			}
			desc, ok := valTok.(string)
			if !ok {
				return node, &MalformedTaxonomyError{Path: path, Reason: "description must be a string"}
			}
			node.description = desc
			node.hasDescription = true
		case "children":
			kids, err := decodeJSONLevel(dec, path)
			if err != nil {
				return node, err
			}
			node.children = kids
		default:
			return node, &MalformedTaxonomyError{Path: path, Reason: "unknown field " + key}
		}
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return node, &MalformedTaxonomyError{Path: path, Reason: err.Error()}
	}

	if !node.hasDescription {
		return node, &MalformedTaxonomyError{Path: path, Reason: "missing description"}
	}
	return node, nil
}

func decodeYAMLLevel(n *yaml.Node, path []string) ([]docEntry, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, &MalformedTaxonomyError{Path: path, Reason: "expected mapping"}
	}
	var entries []docEntry
	for i := 0; i+1 < len(n.Content); i += 2 {
		label := n.Content[i].Value
		if strings.TrimSpace(label) == "" {
			return nil, &MalformedTaxonomyError{Path: path, Reason: "empty label"}
		}
		node, err := decodeYAMLNode(n.Content[i+1], append(path, label))
		if err != nil {
			return nil, err
		}
		entries = append(entries, docEntry{label: label, node: node})
	}
	return entries, nil
}

func decodeYAMLNode(n *yaml.Node, path []string) (docNode, error) {
	var node docNode
	if n.Kind != yaml.MappingNode {
		return node, &MalformedTaxonomyError{Path: path, Reason: "node must be a mapping"}
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		switch key {
		case "description":
			if val.Kind != yaml.ScalarNode {
				return node, &MalformedTaxonomyError{Path: path, Reason: "description must be a string"}
			}
			node.description = val.Value
			node.hasDescription = true
		case "children":
			kids, err := decodeYAMLLevel(val, path)
			if err != nil {
				return node, err
			}
			node.children = kids
		default:
			return node, &MalformedTaxonomyError{Path: path, Reason: "unknown field " + key}
		}
	}
	if !node.hasDescription {
		return node, &MalformedTaxonomyError{Path: path, Reason: "missing description"}
	}
	return node, nil
}

func buildTree(entries []docEntry, maxDepth int) (*Tree, error) {
	tree := New(maxDepth)
	var insert func(entries []docEntry, path []string) error
	insert = func(entries []docEntry, path []string) error {
		for _, e := range entries {
			if err := tree.AddNode(path, e.label, e.node.description); err != nil {
				return &MalformedTaxonomyError{Path: path, Reason: err.Error()}
			}
			if err := insert(e.node.children, append(path, e.label)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(entries, nil); err != nil {
		return nil, err
	}
	return tree, nil
}

// Serialize writes the tree as canonical indented JSON. Child order is
// written as stored, so Load(Serialize(t)) reconstructs t exactly.
func (t *Tree) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeLevel(&buf, t.roots.ordered, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeLevel(buf *bytes.Buffer, nodes []*Node, indent int) error {
	if len(nodes) == 0 {
		buf.WriteString("{}")
		return nil
	}
	pad := strings.Repeat("  ", indent)
	buf.WriteString("{\n")
	for i, n := range nodes {
		label, err := json.Marshal(n.Label)
		if err != nil {
			return eris.Wrap(err, "taxonomy: marshal label")
		}
		desc, err := json.Marshal(n.Description)
		if err != nil {
			return eris.Wrap(err, "taxonomy: marshal description")
		}
		buf.WriteString(pad + "  ")
		buf.Write(label)
		buf.WriteString(": {\n")
		buf.WriteString(pad + "    \"description\": ")
		buf.Write(desc)
		buf.WriteString(",\n")
		buf.WriteString(pad + "    \"children\": ")
		if err := writeLevel(buf, n.children.ordered, indent+2); err != nil {
			return err
		}
		buf.WriteString("\n" + pad + "  }")
		if i < len(nodes)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(pad + "}")
	return nil
}
