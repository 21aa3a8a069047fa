package entity

// FieldErrors is the field-keyed error set the validators return. An empty
// set means the composition is valid; callers must check before persisting.
type FieldErrors map[string]string

func (e FieldErrors) Add(field, message string) {
	e[field] = message
}

func (e FieldErrors) Any() bool {
	return len(e) > 0
}
