package http

import "strings"

// containsFieldMsg reports whether list has a field error on field mentioning substr.
func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
