package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

// Cast converts v to the Go representation of t.
// nil and blank strings cast to nil without error. String values keep their
// exact text; surrounding spaces are ignored only when parsing numbers and
// booleans. A value that cannot be parsed returns a *core.CastError; callers
// decide whether to keep the null.
func Cast(v any, t core.DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return nil, nil
		}
		if t != core.TypeString {
			v = trimmed
		}
	}

	var (
		out any
		ok  bool
	)
	switch t {
	case core.TypeInteger:
		out, ok = toInt64(v)
	case core.TypeDouble:
		out, ok = toFloat64(v)
	case core.TypeBoolean:
		out, ok = toBool(v)
	case core.TypeString:
		out, ok = toString(v)
	}
	if !ok {
		return nil, &core.CastError{Value: fmt.Sprint(v), Type: t}
	}
	return out, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		return floatToInt(x)
	case float32:
		return floatToInt(float64(x))
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, true
		}
		// Spreadsheet exports write integers as "12.0".
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		// Census extracts use a decimal comma.
		f, err := strconv.ParseFloat(strings.Replace(x, ",", ".", 1), 64)
		return f, err == nil
	case bool:
		return 0, false
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(x) {
		case "1", "t", "true", "y", "yes", "s", "sim":
			return true, true
		case "0", "f", "false", "n", "no", "nao", "não":
			return false, true
		}
		return false, false
	}
	n, ok := toInt64(v)
	if !ok || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	return fmt.Sprint(v), true
}
