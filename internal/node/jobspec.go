package node

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
	"github.com/keyforge/keyforge/internal/scoring"
	"github.com/keyforge/keyforge/internal/search"
)

// jobSpec is the locally materialized form of an assignment's canonical
// description (spec.md §5's job_id tuple), after Node has parsed the raw
// JSON Hive returned from get_active_job.
type jobSpec struct {
	Geo            *geometry.KeyboardGeometry
	Weights        *kfweights.ScoringWeights
	Params         search.Params
	Pinned         scoring.PinnedKeys
	CorpusName     string
	CostMatrixName string
}

// parseJobSpec decodes a canonical job description (the same tree
// register_job hashed) into concrete domain objects. The keyboard
// sub-object is written to geometryCachePath and loaded through
// geometry.LoadGeometry so the existing, already-validated JSON loader
// does the parsing — Node never hand-rolls a second geometry decoder.
func parseJobSpec(raw json.RawMessage, geometryCachePath string, writeFile func(path string, data []byte) error, numFreeSlotsHint int) (*jobSpec, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse job description: %w", err)
	}

	var corpusName, costMatrixName string
	if v, ok := doc["corpus_name"]; ok {
		if err := json.Unmarshal(v, &corpusName); err != nil {
			return nil, fmt.Errorf("parse corpus_name: %w", err)
		}
	}
	if v, ok := doc["cost_matrix_name"]; ok {
		if err := json.Unmarshal(v, &costMatrixName); err != nil {
			return nil, fmt.Errorf("parse cost_matrix_name: %w", err)
		}
	}

	keyboardRaw, ok := doc["keyboard"]
	if !ok {
		return nil, fmt.Errorf("job description missing keyboard")
	}
	if err := writeFile(geometryCachePath, keyboardRaw); err != nil {
		return nil, fmt.Errorf("cache keyboard geometry: %w", err)
	}
	geo, err := geometry.LoadGeometry(geometryCachePath)
	if err != nil {
		return nil, fmt.Errorf("load cached geometry: %w", err)
	}

	weights, err := parseWeights(doc["weights"])
	if err != nil {
		return nil, err
	}

	pinned, err := parsePinned(doc["pinned_keys"])
	if err != nil {
		return nil, err
	}

	freeSlots := geo.NumSlots() - len(pinned)
	if numFreeSlotsHint > 0 {
		freeSlots = numFreeSlotsHint
	}
	params, err := parseParams(doc["params"], freeSlots)
	if err != nil {
		return nil, err
	}

	return &jobSpec{
		Geo:            geo,
		Weights:        weights,
		Params:         params,
		Pinned:         pinned,
		CorpusName:     corpusName,
		CostMatrixName: costMatrixName,
	}, nil
}

// parseWeights starts from kfweights.DefaultWeights() and applies the
// description's weights object as key=value overrides, reusing the
// teacher-grounded AddFromString parser (internal/kfweights/weights.go)
// instead of a second JSON-struct decoder.
func parseWeights(raw json.RawMessage) (*kfweights.ScoringWeights, error) {
	w := kfweights.DefaultWeights()
	if len(raw) == 0 {
		return w, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	for k, v := range obj {
		if err := w.AddFromString(fmt.Sprintf("%s=%v", k, v)); err != nil {
			return nil, fmt.Errorf("apply weight override %s: %w", k, err)
		}
	}
	return w, nil
}

// parseParams applies known snake_case keys over search.DefaultParams,
// ignoring unrecognized keys so forward-compatible Hive deployments don't
// break older Node builds.
func parseParams(raw json.RawMessage, numFreeSlots int) (search.Params, error) {
	p := search.DefaultParams(numFreeSlots)
	if len(raw) == 0 {
		return p, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return p, fmt.Errorf("parse params: %w", err)
	}
	asInt := func(v interface{}) int { f, _ := v.(float64); return int(f) }
	asFloat := func(v interface{}) float64 { f, _ := v.(float64); return f }

	if v, ok := obj["search_epochs"]; ok {
		p.SearchEpochs = asInt(v)
	}
	if v, ok := obj["search_steps"]; ok {
		p.SearchSteps = asInt(v)
	}
	if v, ok := obj["temp_max"]; ok {
		p.TempMax = asFloat(v)
	}
	if v, ok := obj["temp_min"]; ok {
		p.TempMin = asFloat(v)
	}
	if v, ok := obj["search_patience"]; ok {
		p.SearchPatience = asInt(v)
	}
	if v, ok := obj["search_patience_threshold"]; ok {
		p.SearchPatienceThreshold = asFloat(v)
	}
	if v, ok := obj["opt_limit_fast"]; ok {
		p.OptLimitFast = asInt(v)
	}
	if v, ok := obj["opt_limit_slow"]; ok {
		p.OptLimitSlow = asInt(v)
	}
	if v, ok := obj["max_restarts"]; ok {
		p.MaxRestarts = asInt(v)
	}
	return p, nil
}

// parsePinned decodes a JSON object of slot-index strings to character
// indices into a scoring.PinnedKeys map.
func parsePinned(raw json.RawMessage) (scoring.PinnedKeys, error) {
	pinned := scoring.PinnedKeys{}
	if len(raw) == 0 {
		return pinned, nil
	}
	var obj map[string]int
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse pinned_keys: %w", err)
	}
	for k, char := range obj {
		slot, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("pinned_keys slot %q is not an integer: %w", k, err)
		}
		pinned[slot] = char
	}
	return pinned, nil
}
