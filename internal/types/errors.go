package types

import "errors"

// Sentinel errors for packkeeper operations.
var (
	// ErrInvalidOperator indicates an unknown condition operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrFieldNotFound indicates a condition or action references a missing column.
	ErrFieldNotFound = errors.New("field not found")

	// ErrEmptyField indicates a condition without a field name.
	ErrEmptyField = errors.New("condition field is empty")

	// ErrCoercionFailed indicates a value could not be coerced to a number.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrInvalidRange indicates a malformed "start-end" range literal.
	ErrInvalidRange = errors.New("invalid range")

	// ErrReversedRange indicates a range literal whose start exceeds its end.
	ErrReversedRange = errors.New("range start exceeds end")

	// ErrInvalidDate indicates a literal matching none of the accepted date shapes.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRegex indicates a pattern that does not compile.
	ErrInvalidRegex = errors.New("invalid regular expression")

	// ErrInvalidQuantity indicates a non-positive or non-integer ADD_PRODUCT quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrUnknownAction indicates an action type outside the action vocabulary.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrDeprecatedAction indicates a recognised but retired action type.
	ErrDeprecatedAction = errors.New("deprecated action type")

	// ErrInvalidLevel indicates a rule level other than article or order.
	ErrInvalidLevel = errors.New("invalid rule level")

	// ErrInvalidMatch indicates a match policy other than ALL or ANY.
	ErrInvalidMatch = errors.New("invalid match policy")

	// ErrEmptyRule indicates a rule with no steps after normalization.
	ErrEmptyRule = errors.New("rule has no steps")

	// ErrInvalidRuleSet indicates a rule set with validation errors.
	ErrInvalidRuleSet = errors.New("invalid rule set")

	// ErrAccountNotFound indicates no account with the requested name or id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRuleSetNotFound indicates no stored rule set with the requested name.
	ErrRuleSetNotFound = errors.New("rule set not found")

	// ErrStorage indicates the rule-set store could not be reached or queried.
	ErrStorage = errors.New("database error")

	// ErrTooManyRows indicates a dataset exceeds the configured request limit.
	ErrTooManyRows = errors.New("dataset exceeds maximum row count")
)
