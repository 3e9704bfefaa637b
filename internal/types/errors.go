package types

import "errors"

// Sentinel errors for condengine operations.
var (
	// ErrUnresolvedCondition indicates a condition has no bound type.
	ErrUnresolvedCondition = errors.New("condition type is not resolved")

	// ErrNilCondition indicates a nil condition reached an operation.
	ErrNilCondition = errors.New("condition is nil")

	// ErrRecursionDepthExceeded indicates a walk went deeper than MaxRecursionDepth.
	ErrRecursionDepthExceeded = errors.New("maximum recursion depth exceeded")

	// ErrTypeCycle indicates a parent-condition chain revisits a type.
	ErrTypeCycle = errors.New("cycle in parent condition chain")

	// ErrNoEvaluator indicates no evaluator is registered for a condition type.
	ErrNoEvaluator = errors.New("no evaluator for condition type")

	// ErrNoQueryBuilder indicates no query builder is registered for a condition type.
	ErrNoQueryBuilder = errors.New("no query builder for condition type")

	// ErrUnknownOperator indicates an unknown comparison operator.
	ErrUnknownOperator = errors.New("unknown comparison operator")

	// ErrMissingParameter indicates a required condition parameter is absent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrMissingPropertyValue indicates an operator's expected value is absent.
	ErrMissingPropertyValue = errors.New("missing expected value for operator")

	// ErrBetweenValues indicates between was given other than two bounds.
	ErrBetweenValues = errors.New("between requires exactly two values")

	// ErrTooManyIDs indicates an ids query exceeds MaxIDsQueryCount.
	ErrTooManyIDs = errors.New("ids query exceeds maximum id count")

	// ErrEmptySubConditions indicates and/or was built without sub-conditions.
	ErrEmptySubConditions = errors.New("at least one sub-condition must be provided")

	// ErrInvalidParameter indicates a parameter has the wrong shape.
	ErrInvalidParameter = errors.New("invalid parameter value")

	// ErrInvalidDateExpression indicates a date or date math expression failed to parse.
	ErrInvalidDateExpression = errors.New("invalid date expression")

	// ErrInvalidDistance indicates a distance string could not be parsed.
	ErrInvalidDistance = errors.New("invalid distance")

	// ErrUnsupportedPastEventOperator indicates an operator other than
	// eventsOccurred / eventsNotOccurred.
	ErrUnsupportedPastEventOperator = errors.New("unsupported past event operator")

	// ErrUnsupportedScript indicates a script:: parameter reference.
	ErrUnsupportedScript = errors.New("script parameters are not supported")

	// ErrUnsupportedFilter indicates a filter node a backend cannot render.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrNoPersistence indicates an operation needs the persistence collaborator.
	ErrNoPersistence = errors.New("persistence collaborator not configured")

	// ErrFieldNotFound indicates a property path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidPath indicates a malformed property path expression.
	ErrInvalidPath = errors.New("invalid property path")

	// ErrUnknownItemType indicates an unsupported item type string.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrItemNotFound indicates a stored item lookup found nothing.
	ErrItemNotFound = errors.New("item not found")
)
