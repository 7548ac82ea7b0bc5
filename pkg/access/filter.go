package access

// Filter is an opaque query fragment in the document store's where-clause
// shape. The policy layer only composes fragments; evaluation belongs to the
// store adapter. Field paths may be dotted ("tenants.tenant") and traverse
// arrays of subdocuments.
type Filter map[string]any

// Eq matches documents whose field equals the value
func Eq(field string, value any) Filter {
	return Filter{field: map[string]any{"equals": value}}
}

// Ne matches documents whose field does not equal the value
func Ne(field string, value any) Filter {
	return Filter{field: map[string]any{"not_equals": value}}
}

// In matches documents whose field equals any of the values. An empty value
// set matches nothing.
func In(field string, values []string) Filter {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return Filter{field: map[string]any{"in": anyValues}}
}

// Or matches documents satisfying any of the fragments
func Or(filters ...Filter) Filter {
	return Filter{"or": filterList(filters)}
}

// And matches documents satisfying all of the fragments
func And(filters ...Filter) Filter {
	return Filter{"and": filterList(filters)}
}

func filterList(filters []Filter) []any {
	list := make([]any, len(filters))
	for i, f := range filters {
		list[i] = map[string]any(f)
	}
	return list
}
