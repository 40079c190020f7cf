package genx

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// unmarshalJSON unmarshals data into v. Model output with a syntax error is
// passed through jsonrepair once before giving up.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// Decode unmarshals the arguments of call into a T.
func Decode[T any](call *FuncCall) (T, error) {
	var v T
	if call == nil {
		return v, ErrNoCall
	}
	if err := unmarshalJSON([]byte(call.Arguments), &v); err != nil {
		return v, fmt.Errorf("genx: decode %s arguments: %w", call.Name, err)
	}
	return v, nil
}
