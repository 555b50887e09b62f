package extractor

import "fmt"

// ValidationError indicates the model judged the document not to match the
// document type's expectations. It is a normal outcome, not a system fault;
// the job fails with the stated reason and extraction is skipped.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document failed validation: %s", e.Reason)
}
