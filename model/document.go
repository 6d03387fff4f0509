package model

// Document is the record a workflow instance is bound to. The engine only
// reads fields for condition evaluation and writes Status on terminal state
// changes; everything else about the document belongs to its own module.
type Document struct {
	Id     string         `json:"id"`
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Owner  string         `json:"owner"`
	Status string         `json:"status"`
	Fields map[string]any `json:"fields"`
}

const DOC_STATUS_DRAFT = "Draft"
const DOC_STATUS_IN_REVIEW = "In Review"
const DOC_STATUS_APPROVED = "Approved"
const DOC_STATUS_REJECTED = "Rejected"
const DOC_STATUS_CANCELLED = "Cancelled"
const DOC_STATUS_ON_HOLD = "On Hold"

// Field returns a top-level document field, nil when absent.
func (d *Document) Field(name string) any {
	if d.Fields == nil {
		return nil
	}
	return d.Fields[name]
}
