package domain

// Field types understood by the record store validator.
const (
	FieldString   = "string"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldDateTime = "datetime"
	FieldEnum     = "enum"
	FieldRef      = "ref"
)

// Collection describes one REST collection served by the dealer API.
type Collection struct {
	Name          string     `json:"name"`
	LabelSingular string     `json:"labelSingular"`
	LabelPlural   string     `json:"labelPlural"`
	DisplayField  string     `json:"displayField"`
	Audited       bool       `json:"audited"`
	ReadOnly      bool       `json:"readOnly"`
	Fields        []FieldDef `json:"fields"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// FieldDef describes one field of a collection.
type FieldDef struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Type         string   `json:"type"`
	Required     bool     `json:"required"`
	Immutable    bool     `json:"immutable"`
	Options      []string `json:"options,omitempty"`
	DisplayOrder int      `json:"displayOrder"`
}

// Field returns the definition named name.
func (c *Collection) Field(name string) (FieldDef, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}
