package conversation

import (
	"fmt"
	"strings"
)

// PersonaTag 人设标识
type PersonaTag string

// 内置人设
const (
	Victor    PersonaTag = "VICTOR"
	John      PersonaTag = "JOHN"
	Hedy      PersonaTag = "HEDY"
	Henrietta PersonaTag = "HENRIETTA"
)

// personaModels 人设与模型的对应关系
var personaModels = map[PersonaTag]string{
	Victor:    "gpt-3.5-turbo",
	John:      "gpt-4o-mini-2024-07-18",
	Hedy:      "gpt-4o-mini",
	Henrietta: "gpt-4o",
}

// AllPersonas 全部人设，按展示顺序
var AllPersonas = []PersonaTag{Victor, John, Hedy, Henrietta}

// Persona 人设：模型 + 提示词
type Persona struct {
	Tag    PersonaTag `json:"tag"`
	Model  string     `json:"model"`
	Prompt string     `json:"-"`
}

// PersonaTable 人设表，构造时校验完整性
type PersonaTable struct {
	byTag      map[PersonaTag]Persona
	defaultTag PersonaTag
}

// NewPersonaTable 创建人设表
// prompts 以人设标识为键，defaultRef 可以是标识或模型名
func NewPersonaTable(prompts map[string]string, defaultRef string) (*PersonaTable, error) {
	t := &PersonaTable{byTag: make(map[PersonaTag]Persona, len(AllPersonas))}

	normalized := make(map[PersonaTag]string, len(prompts))
	for k, v := range prompts {
		normalized[PersonaTag(strings.ToUpper(strings.TrimSpace(k)))] = v
	}

	for _, tag := range AllPersonas {
		model, ok := personaModels[tag]
		if !ok || model == "" {
			return nil, fmt.Errorf("persona %s has no model", tag)
		}
		prompt := strings.TrimSpace(normalized[tag])
		if prompt == "" {
			return nil, fmt.Errorf("persona %s has no prompt", tag)
		}
		t.byTag[tag] = Persona{Tag: tag, Model: model, Prompt: prompt}
	}

	for tag := range normalized {
		if _, ok := personaModels[tag]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, tag)
		}
	}

	t.defaultTag = John
	if defaultRef != "" {
		p, err := t.Resolve(defaultRef)
		if err != nil {
			return nil, fmt.Errorf("invalid default persona: %w", err)
		}
		t.defaultTag = p.Tag
	}
	return t, nil
}

// Resolve 按标识或模型名查找人设，空字符串返回默认人设
func (t *PersonaTable) Resolve(ref string) (Persona, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return t.byTag[t.defaultTag], nil
	}
	if p, ok := t.byTag[PersonaTag(strings.ToUpper(ref))]; ok {
		return p, nil
	}
	for _, tag := range AllPersonas {
		if p := t.byTag[tag]; p.Model == ref {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %s", ErrUnknownPersona, ref)
}

// Default 默认人设
func (t *PersonaTable) Default() Persona {
	return t.byTag[t.defaultTag]
}

// List 按展示顺序返回全部人设
func (t *PersonaTable) List() []Persona {
	out := make([]Persona, 0, len(AllPersonas))
	for _, tag := range AllPersonas {
		out = append(out, t.byTag[tag])
	}
	return out
}
