package httpapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ngalign/ngalign/internal/apierr"
)

// flexInt unmarshals a JSON number or a JSON string containing one
// ("integer-stringable", spec §6's `slice` field) into an int.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexBool unmarshals spec §6's `writeRaw` field: a JSON string
// "true"/"false" (case-insensitive), or a native JSON bool.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

// parseIntArray decodes a JSON-encoded-array-as-string field (`bbox`)
// into exactly n integers.
func parseIntArray(raw string, n int, field string) ([]int, error) {
	var vals []int
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil, apierr.Wrapf(apierr.RequestMalformed, err, "parsing %s", field)
	}
	if len(vals) != n {
		return nil, apierr.Newf(apierr.RequestMalformed, "%s must have %d elements, got %d", field, n, len(vals))
	}
	return vals, nil
}

// parseFloatArray decodes spec §6's `transform` field into exactly n
// floats.
func parseFloatArray(raw string, n int, field string) ([]float64, error) {
	var vals []float64
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil, apierr.Wrapf(apierr.RequestMalformed, err, "parsing %s", field)
	}
	if len(vals) != n {
		return nil, apierr.Newf(apierr.RequestMalformed, "%s must have %d elements, got %d", field, n, len(vals))
	}
	return vals, nil
}
