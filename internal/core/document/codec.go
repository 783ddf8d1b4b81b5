package document

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// DecodeYAML parses YAML into ordered values. Mappings become bson.D and
// sequences bson.A. An empty input decodes to nil.
func DecodeYAML(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return fromNode(&root)
}

// FromYAML parses a YAML mapping. An empty input yields an empty document.
func FromYAML(data []byte) (bson.D, error) {
	v, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return bson.D{}, nil
	}
	d, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("yaml root is %T, expected a mapping", v)
	}
	return d, nil
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.MappingNode:
		d := make(bson.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			value, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			d = append(d, bson.E{Key: n.Content[i].Value, Value: value})
		}
		return d, nil
	case yaml.SequenceNode:
		a := make(bson.A, 0, len(n.Content))
		for _, item := range n.Content {
			value, err := fromNode(item)
			if err != nil {
				return nil, err
			}
			a = append(a, value)
		}
		return a, nil
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	case 0:
		return nil, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %v", n.Line, n.Kind)
}

// ToYAML encodes a value as YAML preserving mapping order.
func ToYAML(v any) ([]byte, error) {
	node, err := toNode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err = enc.Encode(node); err != nil {
		return nil, err
	}
	if err = enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case bson.D:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range t {
			value, err := toNode(e.Value)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, keyNode(e.Key), value)
		}
		return n, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(t))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: t[k]})
		}
		return toNode(d)
	case bson.A:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			value, err := toNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, value)
		}
		return n, nil
	case []any:
		return toNode(bson.A(t))
	case primitive.DateTime:
		return toNode(t.Time().UTC().Format(time.RFC3339Nano))
	case primitive.ObjectID:
		return toNode(t.Hex())
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

// DecodeJSON parses extended JSON (relaxed or canonical) into ordered values.
// The root may be a document or an array.
func DecodeJSON(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	wrapped := make([]byte, 0, len(trimmed)+8)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, trimmed...)
	wrapped = append(wrapped, '}')

	var holder bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &holder); err != nil {
		return nil, err
	}
	v, _ := Get(holder, "v")
	return v, nil
}

// FromJSON parses an extended JSON document.
func FromJSON(data []byte) (bson.D, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return bson.D{}, nil
	}
	d, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("json root is %T, expected an object", v)
	}
	return d, nil
}

// ToJSON renders a document as indented relaxed extended JSON. v must encode
// to a BSON document: a bson.D, a map or a struct.
func ToJSON(v any) ([]byte, error) {
	return bson.MarshalExtJSONIndent(v, false, false, "", "  ")
}

// ToJSONArray renders a sequence of documents as a JSON array.
func ToJSONArray(items bson.A) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, item := range items {
		if i > 0 {
			buf.WriteString(",")
		}
		raw, err := bson.MarshalExtJSON(item, false, false)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteString("]")
	return buf.Bytes(), nil
}
