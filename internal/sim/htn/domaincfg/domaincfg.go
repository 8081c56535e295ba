// Package domaincfg loads HTN domains authored in YAML.
//
// Documents are checked against an embedded JSON schema, preconditions are expr-lang
// expressions over worldstate.State (fact names as in the `expr` struct tags), and the
// result is a validated *htn.Domain.
package domaincfg

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"cavewarden.ai/internal/sim/htn"
	"cavewarden.ai/internal/sim/worldstate"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed domain.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("domain.schema.json", schemaJSON)

type File struct {
	Domain Spec `yaml:"domain" json:"domain"`
}

type Spec struct {
	ID          string          `yaml:"id" json:"id"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Root        string          `yaml:"root" json:"root"`
	Idle        string          `yaml:"idle" json:"idle"`
	Compound    []string        `yaml:"compound" json:"compound"`
	Primitives  []PrimitiveSpec `yaml:"primitives" json:"primitives"`
	Methods     []MethodSpec    `yaml:"methods" json:"methods"`
}

type PrimitiveSpec struct {
	Name    string       `yaml:"name" json:"name"`
	Kind    string       `yaml:"kind" json:"kind"`
	Pre     string       `yaml:"pre,omitempty" json:"pre,omitempty"`
	Effects []EffectSpec `yaml:"effects,omitempty" json:"effects,omitempty"`
}

type EffectSpec struct {
	Fact  string `yaml:"fact" json:"fact"`
	Value bool   `yaml:"value" json:"value"`
}

type MethodSpec struct {
	Task     string   `yaml:"task" json:"task"`
	Name     string   `yaml:"name" json:"name"`
	Pre      string   `yaml:"pre,omitempty" json:"pre,omitempty"`
	Subtasks []string `yaml:"subtasks" json:"subtasks"`
}

// Loaded is a compiled, validated domain ready for a Planner.
type Loaded struct {
	Spec   Spec
	Domain *htn.Domain
	Root   string
	Digest string
}

func Default() (*Loaded, error) {
	return Parse(defaultYAML)
}

// DefaultYAML returns the embedded domain document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultYAML)
}

func Load(path string) (*Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func Parse(raw []byte) (*Loaded, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("domain: yaml: %w", err)
	}
	// Round-trip through JSON so the validator sees plain JSON types.
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	var inst any
	if err := json.Unmarshal(js, &inst); err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("domain: schema: %w", err)
	}

	var f File
	if err := json.Unmarshal(js, &f); err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	return Build(f.Domain)
}

// Build compiles a Spec. Method order in the document is registration order.
func Build(spec Spec) (*Loaded, error) {
	d := htn.NewDomain()
	for _, name := range spec.Compound {
		if err := d.Add(htn.Compound(name)); err != nil {
			return nil, err
		}
	}
	for _, p := range spec.Primitives {
		kind, err := htn.ParseKind(p.Kind)
		if err != nil {
			return nil, fmt.Errorf("domain: primitive %s: %w", p.Name, err)
		}
		pre, err := compileCondition(p.Pre)
		if err != nil {
			return nil, fmt.Errorf("domain: primitive %s: %w", p.Name, err)
		}
		effects := make([]htn.Assignment, 0, len(p.Effects))
		for _, e := range p.Effects {
			effects = append(effects, htn.Set(e.Fact, e.Value))
		}
		if err := d.Add(htn.Primitive(p.Name, kind, pre, effects...)); err != nil {
			return nil, err
		}
	}
	for _, m := range spec.Methods {
		pre, err := compileCondition(m.Pre)
		if err != nil {
			return nil, fmt.Errorf("domain: method %s.%s: %w", m.Task, m.Name, err)
		}
		subs := make([]*htn.Task, 0, len(m.Subtasks))
		for _, name := range m.Subtasks {
			t, ok := d.Task(name)
			if !ok {
				return nil, fmt.Errorf("domain: method %s.%s: unknown subtask %q", m.Task, m.Name, name)
			}
			subs = append(subs, t)
		}
		if err := d.AddMethod(&htn.Method{Task: m.Task, Name: m.Name, Precondition: pre, Subtasks: subs}); err != nil {
			return nil, err
		}
	}
	d.SetIdle(spec.Idle)
	if err := d.Validate(spec.Root); err != nil {
		return nil, err
	}

	canon, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canon)
	return &Loaded{
		Spec:   spec,
		Domain: d,
		Root:   spec.Root,
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

type exprCondition struct {
	src  string
	prog *vm.Program
}

func compileCondition(src string) (htn.Condition, error) {
	src = strings.TrimSpace(src)
	if src == "" || src == "true" {
		return htn.Always{}, nil
	}
	prog, err := expr.Compile(src, expr.Env(worldstate.State{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("precondition %q: %w", src, err)
	}
	return &exprCondition{src: src, prog: prog}, nil
}

// Holds treats a runtime evaluation error as false.
func (c *exprCondition) Holds(s *worldstate.State) bool {
	if s == nil {
		return false
	}
	out, err := expr.Run(c.prog, *s)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}

func (c *exprCondition) String() string { return c.src }
