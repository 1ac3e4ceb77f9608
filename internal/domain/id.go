package domain

import (
	"cmp"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ID identifies a client or product. Older records carry it as a JSON
// number, newer ones as text; both decode to the same canonical form and it
// is written back as a number whenever it is integral.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if isDigits(s) && len(s) <= 15 && (len(s) == 1 || s[0] != '0') {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	text, err := idText(data)
	if err != nil {
		return err
	}
	*id = ID(NormalizeID(text))
	return nil
}

// Ref is a reference to a client id stored on a transaction. It is written
// as text and accepts either representation on read.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	text, err := idText(data)
	if err != nil {
		return err
	}
	*r = Ref(NormalizeID(text))
	return nil
}

// NormalizeID canonicalises an identifier so that "0042", "42", "42.0" and
// the JSON number 42 compare equal. Non-numeric ids are only trimmed.
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if isDigits(s) {
		trimmed := strings.TrimLeft(s, "0")
		if trimmed == "" {
			return "0"
		}
		return trimmed
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// SameID reports whether two identifiers refer to the same record.
func SameID[A, B ~string](a A, b B) bool {
	na := NormalizeID(string(a))
	return na != "" && na == NormalizeID(string(b))
}

// CompareIDs orders numeric ids numerically and other ids as text, numeric
// ones first.
func CompareIDs(a string, b string) int {
	na, nb := NormalizeID(a), NormalizeID(b)
	an, bn := isDigits(na), isDigits(nb)
	switch {
	case an && bn:
		if c := cmp.Compare(len(na), len(nb)); c != 0 {
			return c
		}
		return cmp.Compare(na, nb)
	case an:
		return -1
	case bn:
		return 1
	default:
		return cmp.Compare(na, nb)
	}
}

func idText(data []byte) (string, error) {
	var v any
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.UseNumber()
	if err := decoder.Decode(&v); err != nil {
		return "", err
	}
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	default:
		return "", &json.UnmarshalTypeError{Value: "id", Type: nil}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
