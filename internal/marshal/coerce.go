package marshal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// scalar decodes raw keeping numbers as their literal text.
func scalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// toString accepts JSON strings and renders numbers and booleans as text.
func toString(raw json.RawMessage) (string, error) {
	v, err := scalar(raw)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("%w: expected string, got %s", ErrTypeMismatch, jsonKind(v))
	}
}

// numberText returns the numeric literal of a JSON number or numeric string.
func numberText(raw json.RawMessage, want string) (string, error) {
	v, err := scalar(raw)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case json.Number:
		return x.String(), nil
	case string:
		return strings.TrimSpace(x), nil
	default:
		return "", fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, want, jsonKind(v))
	}
}

// decimalLiteral matches the decimal number forms JSON allows, with an
// optional sign and without hex or fraction-bar notation.
var decimalLiteral = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]*)?([eE][+-]?[0-9]+)?$`)

// maxExponent bounds decimal exponents before exact rational parsing.
const maxExponent = 400

// parseInteger accepts integral literals, including forms like 3.0 or 1e3,
// and rejects fractions and values outside bits. Non-plain literals are
// parsed as exact rationals so large values are never rounded.
func parseInteger(text string, bits int) (int64, error) {
	if n, err := strconv.ParseInt(text, 10, bits); err == nil {
		return n, nil
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("value %s overflows int%d", text, bits)
	}
	if !decimalLiteral.MatchString(text) {
		return 0, fmt.Errorf("invalid integer %q", text)
	}
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		exp, err := strconv.Atoi(text[i+1:])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return 0, fmt.Errorf("value %s overflows int%d", text, bits)
		}
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return 0, fmt.Errorf("invalid integer %q", text)
	}
	if !r.IsInt() {
		return 0, fmt.Errorf("value %s is not an integer", text)
	}
	n := r.Num()
	if !n.IsInt64() {
		return 0, fmt.Errorf("value %s overflows int%d", text, bits)
	}
	v := n.Int64()
	if bits < 64 {
		limit := int64(1) << (bits - 1)
		if v < -limit || v >= limit {
			return 0, fmt.Errorf("value %s overflows int%d", text, bits)
		}
	}
	return v, nil
}

func toInt(raw json.RawMessage) (int32, error) {
	text, err := numberText(raw, "integer")
	if err != nil {
		return 0, err
	}
	n, err := parseInteger(text, 32)
	return int32(n), err
}

func toLong(raw json.RawMessage) (int64, error) {
	text, err := numberText(raw, "integer")
	if err != nil {
		return 0, err
	}
	return parseInteger(text, 64)
}

func toFloat(raw json.RawMessage, bits int) (float64, error) {
	text, err := numberText(raw, "number")
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(text, bits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("value %s overflows float%d", text, bits)
		}
		return 0, fmt.Errorf("invalid number %q", text)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("value %s is not a finite number", text)
	}
	return f, nil
}

func toBool(raw json.RawMessage) (bool, error) {
	v, err := scalar(raw)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", x)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: expected boolean, got %s", ErrTypeMismatch, jsonKind(v))
	}
}

func toObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		v, _ := scalar(raw)
		return nil, fmt.Errorf("%w: expected object, got %s", ErrTypeMismatch, jsonKind(v))
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toArray(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		v, _ := scalar(raw)
		return nil, fmt.Errorf("%w: expected array, got %s", ErrTypeMismatch, jsonKind(v))
	}
	var out []json.RawMessage
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return out, nil
}
