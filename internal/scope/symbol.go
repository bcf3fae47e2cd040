package scope

// SymbolKind is the kind of a program entity as reported by the analyzer.
type SymbolKind int

const (
	SymbolKindActor SymbolKind = iota
	SymbolKindClass
	SymbolKindInterface
	SymbolKindTrait
	SymbolKindStruct
	SymbolKindType
	SymbolKindPrimitive
	SymbolKindParam
	SymbolKindNew
	SymbolKindFieldLet
	SymbolKindFieldVar
	SymbolKindLet
	SymbolKindVar
	SymbolKindFun
	SymbolKindBe

	// SymbolKindUnknown is used for wire values outside the known table.
	SymbolKindUnknown SymbolKind = -1
)

var symbolKindNames = map[SymbolKind]string{
	SymbolKindActor:     "actor",
	SymbolKindClass:     "class",
	SymbolKindInterface: "interface",
	SymbolKindTrait:     "trait",
	SymbolKindStruct:    "struct",
	SymbolKindType:      "type",
	SymbolKindPrimitive: "primitive",
	SymbolKindParam:     "param",
	SymbolKindNew:       "new",
	SymbolKindFieldLet:  "flet",
	SymbolKindFieldVar:  "fvar",
	SymbolKindLet:       "let",
	SymbolKindVar:       "var",
	SymbolKindFun:       "fun",
	SymbolKindBe:        "be",
}

// String returns the analyzer's keyword for the kind.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the kind by name in JSON output.
func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func symbolKindFromWire(v uint64) SymbolKind {
	if v > uint64(SymbolKindBe) {
		return SymbolKindUnknown
	}
	return SymbolKind(v)
}

// RefCap is a Pony reference capability.
type RefCap int

const (
	RefCapIso RefCap = iota
	RefCapTrn
	RefCapRef
	RefCapVal
	RefCapBox
	RefCapTag

	RefCapUnknown RefCap = -1
)

var refCapNames = map[RefCap]string{
	RefCapIso: "iso",
	RefCapTrn: "trn",
	RefCapRef: "ref",
	RefCapVal: "val",
	RefCapBox: "box",
	RefCapTag: "tag",
}

// String returns the display name of the capability.
func (c RefCap) String() string {
	if name, ok := refCapNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c RefCap) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func refCapFromWire(v uint64) RefCap {
	if v > uint64(RefCapTag) {
		return RefCapUnknown
	}
	return RefCap(v)
}

// TypeRef names the type of a symbol or parameter.
type TypeRef struct {
	Name string `json:"name"`
}

// Parameter is one entry of a callable's parameter list.
type Parameter struct {
	Name string   `json:"name"`
	Type *TypeRef `json:"type,omitempty"`
}

// Location is a definition site with one-based line and column, as the
// analyzer reports it.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Symbol is one named entity decoded from an analyzer response.
type Symbol struct {
	Kind               SymbolKind  `json:"kind"`
	Name               string      `json:"name"`
	Type               *TypeRef    `json:"type,omitempty"`
	Parameters         []Parameter `json:"parameters,omitempty"`
	Cap                RefCap      `json:"cap"`
	Docstring          string      `json:"docstring,omitempty"`
	DefinitionLocation *Location   `json:"definitionLocation,omitempty"`
}

// Scope is the set of symbols visible at a position.
type Scope struct {
	Symbols []Symbol `json:"symbols"`
}
