package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/oliveagle/jsonpath"
	"go.uber.org/zap"
)

// FieldValue resolves a condition field against a document. Dotted names are
// treated as jsonpath lookups into the field map so nested values can be
// addressed. A missing field resolves to the empty string.
func FieldValue(doc *model.Document, field string) any {
	if doc == nil {
		return ""
	}
	if strings.Contains(field, ".") {
		val, err := jsonpath.JsonPathLookup(doc.Fields, "$."+field)
		if err != nil {
			return ""
		}
		return val
	}
	switch field {
	case "document_type", "type":
		return doc.Type
	case "status":
		return doc.Status
	case "owner":
		return doc.Owner
	case "title":
		return doc.Title
	}
	val := doc.Field(field)
	if val == nil {
		return ""
	}
	return val
}

// Evaluate applies a single comparison to a field value. Comparison failures
// (e.g. non-numeric input to greater_than) evaluate to false, never to an
// error.
func Evaluate(cond model.Condition, fieldValue any) bool {
	if fieldValue == nil {
		fieldValue = ""
	}
	str := stringify(fieldValue)
	switch cond.Operator {
	case model.OP_EQUALS:
		return str == cond.Value
	case model.OP_NOT_EQUALS:
		return str != cond.Value
	case model.OP_CONTAINS:
		return strings.Contains(str, cond.Value)
	case model.OP_NOT_CONTAINS:
		return !strings.Contains(str, cond.Value)
	case model.OP_STARTS_WITH:
		return strings.HasPrefix(str, cond.Value)
	case model.OP_ENDS_WITH:
		return strings.HasSuffix(str, cond.Value)
	case model.OP_GREATER_THAN:
		a, b, err := toFloats(str, cond.Value)
		return err == nil && a > b
	case model.OP_LESS_THAN:
		a, b, err := toFloats(str, cond.Value)
		return err == nil && a < b
	case model.OP_GREATER_THAN_OR_EQUAL:
		a, b, err := toFloats(str, cond.Value)
		return err == nil && a >= b
	case model.OP_LESS_THAN_OR_EQUAL:
		a, b, err := toFloats(str, cond.Value)
		return err == nil && a <= b
	case model.OP_IN:
		return containsValue(cond.Value, str)
	case model.OP_NOT_IN:
		return !containsValue(cond.Value, str)
	case model.OP_IS_EMPTY:
		return strings.TrimSpace(str) == ""
	case model.OP_IS_NOT_EMPTY:
		return strings.TrimSpace(str) != ""
	}
	logger.Debug("unknown condition operator", zap.String("operator", string(cond.Operator)))
	return false
}

// EvaluateGroup combines conditions against a document. Each condition's own
// logical operator tags how it joins the group: AND-tagged conditions are
// all required, while a single satisfied OR-tagged condition makes the whole
// group pass regardless of AND failures.
func EvaluateGroup(conditions []model.Condition, doc *model.Document) bool {
	if len(conditions) == 0 {
		return true
	}
	allMet := true
	anyMet := false
	for _, cond := range conditions {
		met := Evaluate(cond, FieldValue(doc, cond.Field))
		switch cond.LogicalOperator {
		case model.LOGICAL_OR:
			anyMet = anyMet || met
		default:
			allMet = allMet && met
		}
	}
	if anyMet {
		return true
	}
	return allMet
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloats(a, b string) (float64, float64, error) {
	fa, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, err
	}
	fb, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, err
	}
	return fa, fb, nil
}

func containsValue(csv string, v string) bool {
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == v {
			return true
		}
	}
	return false
}
