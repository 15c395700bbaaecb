package code

// ScopeGlobal is the definition scope that applies to the whole code.
const ScopeGlobal = "global"

// ScopeSection is the definition scope limited to the defining law.
const ScopeSection = "Section"

// Definition is a defined term as persisted in the dictionary.
type Definition struct {
	LawID            int64  `json:"law_id"`
	Term             string `json:"term"`
	Definition       string `json:"definition"`
	Scope            string `json:"scope"`
	ScopeSpecificity int    `json:"scope_specificity"`

	// StructureID is set only when the scope is a structural label
	// narrower than global and broader than the law itself.
	StructureID int64 `json:"structure_id,omitempty"`
}

// Reference is a citation found in a law's text.
type Reference struct {
	LawID    int64  `json:"law_id"`
	Target   string `json:"target"`
	Mentions int    `json:"mentions"`
}

// HistoryEvent is one structured entry of a law's amendment history.
type HistoryEvent struct {
	LawID    int64    `json:"law_id,omitempty"`
	Year     string   `json:"year"`
	Chapters []string `json:"chapters"`
	Section  string   `json:"section,omitempty"`
}

// ObjectType distinguishes permalink targets.
type ObjectType string

const (
	ObjectStructure ObjectType = "structure"
	ObjectLaw       ObjectType = "law"
)

// Permalink is a stable URL token for a structure or law.
type Permalink struct {
	ObjectType   ObjectType `json:"object_type"`
	RelationalID int64      `json:"relational_id"`
	Identifier   string     `json:"identifier"`
	Token        string     `json:"token"`
	URL          string     `json:"url"`
}

// Edition is a versioned snapshot of the whole code.
type Edition struct {
	ID      int64  `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Current bool   `json:"current"`
}
