// Package pgqval converts the loosely-typed values pgx.Rows.Values()
// returns into the string/int64 shapes the maintenance, ticker, and
// retry FSMs need — this system "does not parse query results beyond
// extracting the first row/column as a string or integer" (spec §1).
package pgqval

import "strconv"

// AsString extracts a string from a driver value, accepting the
// shapes pgx commonly returns for text/varchar/name columns.
func AsString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

// AsInt64 extracts an integer from a driver value, accepting the
// shapes pgx commonly returns for int2/int4/int8 and numeric-as-text
// columns.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int16:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// FirstString returns the first column of row as a string.
func FirstString(row []any) (string, bool) {
	if len(row) == 0 {
		return "", false
	}
	return AsString(row[0])
}

// FirstInt64 returns the first column of row as an int64.
func FirstInt64(row []any) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	return AsInt64(row[0])
}
