// Package codec converts conditions, definitions, rules and items to and
// from their JSON representation.
//
// Condition parameters are ordered, so the codec streams objects with
// json-iterator's Iterator/Stream API instead of decoding into Go maps,
// which would lose key order. Definition and item envelopes use struct
// decoding through the same jsoniter configuration.
package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/solatis/condengine/internal/types"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// dateParameters hold dates. Dates are written as RFC3339 strings, so
// strings under these names that parse as RFC3339 are read back as dates.
// Anything else, such as a parameter:: reference, stays a string.
var dateParameters = map[string]bool{
	"propertyValueDate":  true,
	"propertyValuesDate": true,
	"fromDate":           true,
	"toDate":             true,
}

// Reserved keys of a serialized condition.
const (
	keyType            = "type"
	keyConditionTypeID = "conditionTypeId"
	keyParameterValues = "parameterValues"
)

// writeValue streams v as JSON. Doubles always carry a fraction or exponent
// so they decode back as doubles.
func writeValue(stream *jsoniter.Stream, v types.Value) {
	switch v.Kind() {
	case types.KindNull:
		stream.WriteNil()
	case types.KindString:
		s, _ := v.AsString()
		stream.WriteString(s)
	case types.KindInt:
		i, _ := v.AsInt()
		stream.WriteInt64(i)
	case types.KindFloat:
		f, _ := v.AsNumber()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if stream.Error == nil {
				stream.Error = fmt.Errorf("%w: unsupported float %v", types.ErrInvalidParameter, f)
			}
			stream.WriteNil()
			return
		}
		stream.WriteRaw(formatFloat(f))
	case types.KindBool:
		b, _ := v.AsBool()
		stream.WriteBool(b)
	case types.KindDate:
		t, _ := v.AsDate()
		stream.WriteString(t.Format(time.RFC3339Nano))
	case types.KindList:
		list, _ := v.AsList()
		stream.WriteArrayStart()
		for i, e := range list {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, e)
		}
		stream.WriteArrayEnd()
	case types.KindMap:
		entries, _ := v.AsMap()
		writeParameters(stream, entries)
	case types.KindCondition:
		c, _ := v.AsCondition()
		writeCondition(stream, c)
	}
}

func writeParameters(stream *jsoniter.Stream, ps []types.Parameter) {
	stream.WriteObjectStart()
	for i, p := range ps {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(p.Name)
		writeValue(stream, p.Value)
	}
	stream.WriteObjectEnd()
}

func writeCondition(stream *jsoniter.Stream, c *types.Condition) {
	if c == nil {
		stream.WriteNil()
		return
	}
	stream.WriteObjectStart()
	stream.WriteObjectField(keyType)
	stream.WriteString(c.TypeID)
	stream.WriteMore()
	stream.WriteObjectField(keyParameterValues)
	writeParameters(stream, c.Parameters())
	stream.WriteObjectEnd()
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// readValue decodes the next JSON value. Objects carrying a type id and a
// parameterValues object decode as conditions; other objects as maps.
func readValue(iter *jsoniter.Iterator) types.Value {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		return types.String(iter.ReadString())
	case jsoniter.NumberValue:
		return numberValue(iter, iter.ReadNumber())
	case jsoniter.BoolValue:
		return types.Bool(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		return types.Null()
	case jsoniter.ArrayValue:
		vs := []types.Value{}
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			vs = append(vs, readValue(iter))
			return iter.Error == nil
		})
		return types.List(vs...)
	case jsoniter.ObjectValue:
		entries := readParameters(iter)
		if c, ok := conditionFromEntries(entries); ok {
			return types.Cond(c)
		}
		return types.Map(entries...)
	default:
		iter.ReportError("readValue", "unexpected JSON token")
		return types.Null()
	}
}

func readParameters(iter *jsoniter.Iterator) []types.Parameter {
	entries := []types.Parameter{}
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		v := readValue(iter)
		if dateParameters[field] {
			v = asDates(v)
		}
		entries = append(entries, types.Parameter{Name: field, Value: v})
		return iter.Error == nil
	})
	return entries
}

// asDates converts RFC3339 strings, alone or in a list, to dates.
func asDates(v types.Value) types.Value {
	switch v.Kind() {
	case types.KindString:
		s, _ := v.AsString()
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return types.Date(t)
		}
	case types.KindList:
		list, _ := v.AsList()
		out := make([]types.Value, len(list))
		for i, e := range list {
			out[i] = asDates(e)
		}
		return types.List(out...)
	}
	return v
}

func numberValue(iter *jsoniter.Iterator, n json.Number) types.Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return types.Int(i)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		iter.ReportError("numberValue", err.Error())
		return types.Null()
	}
	return types.Float(f)
}

// conditionFromEntries recognizes {"type": "...", "parameterValues": {...}}
// (or conditionTypeId) as a condition.
func conditionFromEntries(entries []types.Parameter) (*types.Condition, bool) {
	var typeID string
	var params []types.Parameter
	var hasParams, hasType bool
	for _, e := range entries {
		switch e.Name {
		case keyType, keyConditionTypeID:
			s, ok := e.Value.AsString()
			if !ok {
				return nil, false
			}
			typeID, hasType = s, true
		case keyParameterValues:
			m, ok := e.Value.AsMap()
			if !ok {
				if e.Value.IsNull() {
					hasParams = true
					continue
				}
				return nil, false
			}
			params, hasParams = m, true
		default:
			return nil, false
		}
	}
	if !hasType || !hasParams {
		return nil, false
	}
	c := types.NewCondition(typeID)
	c.SetParameters(params)
	return c, true
}

func iterError(iter *jsoniter.Iterator) error {
	if iter.Error != nil && iter.Error != io.EOF {
		return fmt.Errorf("decode: %w", iter.Error)
	}
	return nil
}
