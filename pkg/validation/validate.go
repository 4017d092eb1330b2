package validation

import (
	"fmt"
	"strconv"
	"strings"

	"dealdesk/pkg/contract"
	"dealdesk/pkg/models"
)

// Rules is a config-driven constraint set applied to contract payloads.
// Paths are dot-separated; "*" descends into the first array element.
type Rules struct {
	Required []string
	Types    map[string]string
	MaxLen   map[string]int
	Enums    map[string][]string
	WhenThen []WhenThenRule
}

type WhenThenRule struct {
	WhenPath string
	Equals   interface{}
	ThenReq  []string
}

var rules Rules

func SetRules(r Rules) { rules = r }

// ValidateContract checks a contract against the configured rules and,
// when a template is supplied, against the template's required fields.
func ValidateContract(c *models.Contract, tpl *models.ContractTemplate) error {
	var errs []string
	root := map[string]interface{}{
		"id":       c.ID,
		"title":    c.Title,
		"type":     c.Type,
		"status":   string(c.Status),
		"data":     c.Data,
		"metadata": c.Metadata,
	}

	if tpl != nil {
		data, _ := c.Data.(map[string]interface{})
		for _, f := range tpl.Template.Fields {
			if !f.Required {
				continue
			}
			if data == nil {
				errs = append(errs, fmt.Sprintf("template field missing: %s", f.Name))
				continue
			}
			if v, ok := data[f.Name]; !ok || v == nil || v == "" {
				errs = append(errs, fmt.Sprintf("template field missing: %s", f.Name))
			}
		}
	}

	for _, p := range rules.Required {
		if !existsAt(root, p) {
			errs = append(errs, fmt.Sprintf("required path missing: %s", p))
		}
	}
	for p, t := range rules.Types {
		if v, ok := valueAt(root, p); ok {
			if !typeMatches(v, t) {
				errs = append(errs, fmt.Sprintf("type mismatch at %s: expected %s", p, t))
			}
		}
	}
	for p, max := range rules.MaxLen {
		if v, ok := valueAt(root, p); ok {
			switch vv := v.(type) {
			case string:
				if len(vv) > max {
					errs = append(errs, fmt.Sprintf("max length exceeded at %s: %d > %d", p, len(vv), max))
				}
			case []interface{}:
				if len(vv) > max {
					errs = append(errs, fmt.Sprintf("max length exceeded at %s: %d > %d", p, len(vv), max))
				}
			}
		}
	}
	for p, vals := range rules.Enums {
		if v, ok := valueAt(root, p); ok {
			if s, ok2 := v.(string); ok2 {
				if !contains(vals, s) {
					errs = append(errs, fmt.Sprintf("invalid enum at %s", p))
				}
			}
		}
	}
	for _, r := range rules.WhenThen {
		if v, ok := valueAt(root, r.WhenPath); ok {
			if equalsJSONValue(v, r.Equals) {
				for _, p := range r.ThenReq {
					if !existsAt(root, p) {
						errs = append(errs, fmt.Sprintf("required by rule (when %s == %v): %s", r.WhenPath, r.Equals, p))
					}
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", contract.ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

func existsAt(root interface{}, path string) bool {
	_, ok := valueAt(root, path)
	return ok
}

func valueAt(root interface{}, path string) (interface{}, bool) {
	segs := strings.Split(path, ".")
	cur := root
	for _, s := range segs {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[s]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			if s == "*" {
				if len(node) == 0 {
					return nil, false
				}
				cur = node[0]
			} else if idx, err := strconv.Atoi(s); err == nil {
				if idx < 0 || idx >= len(node) {
					return nil, false
				}
				cur = node[idx]
			} else {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

func typeMatches(v interface{}, t string) bool {
	switch strings.ToLower(t) {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	default:
		return true
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func equalsJSONValue(a interface{}, b interface{}) bool {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case int:
			return av == float64(bv)
		case int64:
			return av == float64(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	case map[string]interface{}, []interface{}:
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
