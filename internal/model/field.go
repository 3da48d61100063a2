package model

// Field is a request value that the caller may or may not have sent.
// Absent, null, false, zero and empty values are all "not sent".
type Field struct {
	Value   string
	Present bool
}

// Text wraps a string; the empty string is not present.
func Text(v string) Field {
	return Field{Value: v, Present: v != ""}
}

// Or returns the value when present and def otherwise.
func (f Field) Or(def string) string {
	if !f.Present {
		return def
	}
	return f.Value
}
