package assessment

import "fmt"

// InputError reports a client submission that failed validation.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}
