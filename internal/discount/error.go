package discount

import (
	"errors"
	"fmt"
)

// InputError collects validation failures per request field.
type InputError struct {
	fields map[string][]string
}

func newInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

// IsInputError returns the InputError wrapped in err, or nil.
func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) fieldsCount() int {
	return len(ie.fields)
}

func (ie *InputError) addError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

func (ie *InputError) Error() string {
	return fmt.Sprintf("invalid discount: %+v", ie.fields)
}

// Fields returns the messages keyed by field name.
func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}
