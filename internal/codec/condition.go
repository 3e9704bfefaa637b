package codec

import (
	"errors"
	"fmt"

	"github.com/solatis/condengine/internal/types"
)

var errNotCondition = errors.New("JSON object is not a condition")

// MarshalCondition serializes a condition tree. Parameter order is preserved.
func MarshalCondition(c *types.Condition) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	writeCondition(stream, c)
	if stream.Error != nil {
		return nil, fmt.Errorf("encode condition: %w", stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// UnmarshalCondition parses a serialized condition tree. The result is
// unresolved; run it through the resolver before evaluation.
func UnmarshalCondition(data []byte) (*types.Condition, error) {
	iter := api.BorrowIterator(data)
	defer api.ReturnIterator(iter)

	v := readValue(iter)
	if err := iterError(iter); err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	c, ok := v.AsCondition()
	if !ok {
		return nil, errNotCondition
	}
	return c, nil
}

// MarshalValue serializes a single parameter value.
func MarshalValue(v types.Value) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	writeValue(stream, v)
	if stream.Error != nil {
		return nil, fmt.Errorf("encode value: %w", stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// UnmarshalValue parses a single parameter value.
func UnmarshalValue(data []byte) (types.Value, error) {
	iter := api.BorrowIterator(data)
	defer api.ReturnIterator(iter)

	v := readValue(iter)
	if err := iterError(iter); err != nil {
		return types.Null(), err
	}
	return v, nil
}

// unmarshalParameters parses a JSON object into ordered parameters.
func unmarshalParameters(data []byte) ([]types.Parameter, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("%w: parameterValues must be an object", types.ErrInvalidParameter)
	}
	return m, nil
}
