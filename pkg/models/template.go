package models

// TemplateField describes one form field in a contract template.
type TemplateField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"` // text|date|datetime|number|select|textarea|array
	Required bool   `json:"required"`
}

// TemplateBody is the structured JSON payload of a template.
type TemplateBody struct {
	Fields       []TemplateField `json:"fields"`
	LegalClauses []string        `json:"legalClauses"`
}

// ContractTemplate is a reusable agreement skeleton. Type is one of
// split-sheet, performance, producer, management.
type ContractTemplate struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Description string       `json:"description,omitempty"`
	Template    TemplateBody `json:"template"`
	Active      bool         `json:"is_active"`
	CreatedTS   int64        `json:"created_ts"`
}
