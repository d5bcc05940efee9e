package agents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	schemagen "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

type validator interface {
	Validate() error
}

// OutputParser turns model text into a validated T. The JSON schema reflected from T
// is both shown to the model and enforced on its answer.
type OutputParser[T any] struct {
	schemaJSON string
	schema     *jsonschema.Schema
}

// NewOutputParser reflects and compiles the schema for T.
func NewOutputParser[T any]() (*OutputParser[T], error) {
	r := &schemagen.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	var zero T
	reflected := r.Reflect(&zero)
	reflected.Version = ""

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &OutputParser[T]{schemaJSON: string(raw), schema: compiled}, nil
}

// FormatInstructions is the text substituted for {format_instructions} in system prompts.
func (p *OutputParser[T]) FormatInstructions() string {
	return "The output should be formatted as a JSON instance that conforms to the JSON schema below.\n\n" +
		"Return only the JSON object, without commentary.\n\n" +
		"Here is the output schema:\n```\n" + p.schemaJSON + "\n```"
}

// Decode extracts the JSON object from text, checks it against the schema and decodes it.
// Type-level Validate is not run.
func (p *OutputParser[T]) Decode(text string) (T, error) {
	var out T

	raw, err := extractJSON(text)
	if err != nil {
		return out, err
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return out, fmt.Errorf("invalid JSON in model output: %w", err)
	}
	if err := p.schema.Validate(inst); err != nil {
		return out, fmt.Errorf("model output does not match schema: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode model output: %w", err)
	}
	return out, nil
}

// Parse is Decode followed by T's own Validate, when it has one.
func (p *OutputParser[T]) Parse(text string) (T, error) {
	out, err := p.Decode(text)
	if err != nil {
		var zero T
		return zero, err
	}
	if v, ok := any(out).(validator); ok {
		if err := v.Validate(); err != nil {
			var zero T
			return zero, fmt.Errorf("invalid model output: %w", err)
		}
	}
	return out, nil
}

func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object found in model output")
	}
	return s[start : end+1], nil
}
