package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed document.schema.json
var documentSchema []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
})

// Format is a document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format from the file extension. Anything other
// than .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadDocument reads and decodes the rule document at path.
func LoadDocument(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	doc, err := ParseDocument(b, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return doc, nil
}

// ParseDocument checks b against the document schema and decodes it.
// Structural problems are returned as a *ValidationError listing every
// schema violation.
func ParseDocument(b []byte, f Format) (*Document, error) {
	jsonBytes := b
	if f == FormatYAML {
		var err error
		if jsonBytes, err = yamlToJSON(b); err != nil {
			return nil, err
		}
	}

	if issues, err := schemaIssues(jsonBytes); err != nil {
		return nil, err
	} else if len(issues) > 0 {
		return nil, &ValidationError{Report: NewReport(issues)}
	}

	var doc Document
	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(b, &doc)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func schemaIssues(doc []byte) ([]Issue, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	var issues []Issue
	for _, re := range res.Errors() {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     re.Field(),
			Message:  re.Description(),
		})
	}
	return issues, nil
}

// yamlToJSON converts a YAML document to JSON for the schema pass. It walks
// the node tree rather than decoding into maps: repeated mapping keys keep
// the last value here and are left for lookup.Table to report.
func yamlToJSON(b []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	v, err := nodeValue(&root)
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

// nodeValue returns the plain Go value of n. Mapping keys are used verbatim
// (`100: x` becomes "100").
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, nil
}

// LoadPipeline reads and decodes the JSON pipeline file at path. Unknown
// fields are rejected so typos surface before a run starts.
func LoadPipeline(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}
