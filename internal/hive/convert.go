package hive

import "github.com/keyforge/keyforge/internal/jobid"

// toJobidValue converts a tree produced by encoding/json.Unmarshal into
// json.RawMessage (map[string]interface{}, []interface{}, float64, string,
// bool, nil) into the jobid.Value tree Compute expects. Wire decoding
// itself stays on encoding/json (this is ordinary HTTP transport, not the
// canonicalization spec.md §9 singles out); only the hashed tree needs the
// jobid.Object/Array wrapper so Canonical's key-sort/number-format rules
// apply.
func toJobidValue(v interface{}) jobid.Value {
	switch t := v.(type) {
	case map[string]interface{}:
		obj := make(jobid.Object, len(t))
		for k, val := range t {
			obj[k] = toJobidValue(val)
		}
		return obj
	case []interface{}:
		arr := make(jobid.Array, len(t))
		for i, val := range t {
			arr[i] = toJobidValue(val)
		}
		return arr
	default:
		return t
	}
}
