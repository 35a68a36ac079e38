// Package meta defines the structural records produced by the metadata
// extraction core: one TypeRecord per publicly visible type, with member
// records for constructors, methods, properties, fields and events.
//
// Records are immutable once returned and carry no references into the
// image they were extracted from, so they remain valid after the owning
// sandbox is released.
package meta

// ParameterModifier describes how a parameter is passed.
type ParameterModifier string

const (
	ModifierValue    ParameterModifier = "value"
	ModifierRef      ParameterModifier = "ref"
	ModifierOut      ParameterModifier = "out"
	ModifierVariadic ParameterModifier = "params"
)

// ParameterRecord describes one constructor or method parameter.
type ParameterRecord struct {
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	IsOptional      bool              `json:"isOptional,omitempty"`
	HasDefaultValue bool              `json:"hasDefaultValue,omitempty"`
	Modifier        ParameterModifier `json:"modifier,omitempty"`
}

// ConstructorRecord describes one public instance constructor.
type ConstructorRecord struct {
	Name       string            `json:"name"`
	Parameters []ParameterRecord `json:"parameters"`
}

// MethodRecord describes one declared public method.
type MethodRecord struct {
	Name       string            `json:"name"`
	ReturnType string            `json:"returnType"`
	IsStatic   bool              `json:"isStatic,omitempty"`
	IsAbstract bool              `json:"isAbstract,omitempty"`
	IsVirtual  bool              `json:"isVirtual,omitempty"`
	IsOverride bool              `json:"isOverride,omitempty"`
	IsSealed   bool              `json:"isSealed,omitempty"`
	Parameters []ParameterRecord `json:"parameters"`
}

// PropertyRecord describes one declared property with at least one public
// accessor. Flag fields are the logical OR across both accessors.
type PropertyRecord struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	HasPublicGetter bool   `json:"hasPublicGetter"`
	HasPublicSetter bool   `json:"hasPublicSetter"`
	IsStatic        bool   `json:"isStatic,omitempty"`
	IsAbstract      bool   `json:"isAbstract,omitempty"`
	IsVirtual       bool   `json:"isVirtual,omitempty"`
	IsOverride      bool   `json:"isOverride,omitempty"`
	IsSealed        bool   `json:"isSealed,omitempty"`
	IsRequired      bool   `json:"isRequired,omitempty"`
	IsInit          bool   `json:"isInit,omitempty"`
}

// FieldRecord describes one declared public field.
type FieldRecord struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsStatic   bool   `json:"isStatic,omitempty"`
	IsReadOnly bool   `json:"isReadOnly,omitempty"`
	IsConstant bool   `json:"isConstant,omitempty"`
	IsRequired bool   `json:"isRequired,omitempty"`
}

// EventRecord describes one declared event with at least one public
// add or remove accessor.
type EventRecord struct {
	Name             string `json:"name"`
	EventHandlerType string `json:"eventHandlerType"`
	IsStatic         bool   `json:"isStatic,omitempty"`
}

// TypeRecord describes one publicly visible type. Collection fields are
// always non-nil; a type with no members of a kind carries an empty slice.
type TypeRecord struct {
	FullName     string              `json:"fullName"`
	Implements   []string            `json:"implements,omitempty"`
	Constructors []ConstructorRecord `json:"constructors,omitempty"`
	Methods      []MethodRecord      `json:"methods,omitempty"`
	Properties   []PropertyRecord    `json:"properties,omitempty"`
	Fields       []FieldRecord       `json:"fields,omitempty"`
	Events       []EventRecord       `json:"events,omitempty"`
}

// NewTypeRecord returns a TypeRecord with every collection initialized
// to an empty slice.
func NewTypeRecord(fullName string) *TypeRecord {
	return &TypeRecord{
		FullName:     fullName,
		Implements:   []string{},
		Constructors: []ConstructorRecord{},
		Methods:      []MethodRecord{},
		Properties:   []PropertyRecord{},
		Fields:       []FieldRecord{},
		Events:       []EventRecord{},
	}
}

// ProjectResolution is the result of mapping a project file to its build
// outputs. AssetsFilePath is empty when no dependency manifest was found.
type ProjectResolution struct {
	AssemblyPath    string `json:"assemblyPath"`
	AssetsFilePath  string `json:"assetsFilePath,omitempty"`
	TargetFramework string `json:"targetFramework"`
	Configuration   string `json:"configuration"`
}
