package series

import (
	"errors"
	"fmt"
)

// ErrInputContract marks input that violates the table contract: duplicate
// or unordered dates, unparseable values, ragged rows.
var ErrInputContract = errors.New("input contract violation")

// ContractError locates an input contract violation. Line is 1-based for CSV
// input and a position index for in-memory input.
type ContractError struct {
	Line   int
	Column string
	Reason string
}

func (e *ContractError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d, column %q: %s", ErrInputContract, e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: column %q: %s", ErrInputContract, e.Column, e.Reason)
}

func (e *ContractError) Unwrap() error {
	return ErrInputContract
}
