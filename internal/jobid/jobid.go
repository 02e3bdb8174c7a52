package jobid

import (
	"crypto/sha256"
	"encoding/hex"
)

// JobId is the hex-encoded sha256 of a job description's canonical JSON
// form (spec.md §5: "job_id = hex(sha256(canonical_json(...)))").
type JobId string

// Description is the (keyboard, weights, params, pinned_keys, corpus_name,
// cost_matrix_name) tuple spec.md §5 hashes into a JobId. Every field that
// participates in the hash must be present; an empty/zero field still
// serializes (e.g. an empty pinned-key map is a valid, distinct input from
// a non-empty one).
type Description struct {
	Keyboard       Value
	Weights        Value
	Params         Value
	PinnedKeys     Value
	CorpusName     string
	CostMatrixName string
}

// Compute derives the canonical JobId for d. Two Descriptions that differ
// only in object-key order within Keyboard/Weights/Params/PinnedKeys yield
// the same JobId, satisfying spec.md §7's "Job dedup" invariant.
func Compute(d Description) (JobId, string, error) {
	obj := Object{
		"keyboard":         d.Keyboard,
		"weights":          d.Weights,
		"params":           d.Params,
		"pinned_keys":      d.PinnedKeys,
		"corpus_name":      d.CorpusName,
		"cost_matrix_name": d.CostMatrixName,
	}
	canonical, err := Canonical(obj)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return JobId(hex.EncodeToString(sum[:])), canonical, nil
}

// Verify recomputes the JobId for d and reports whether it matches want.
// Hive's register_job handler makes the same comparison by calling Compute
// directly; submit_result does not recompute ids.
func Verify(d Description, want JobId) (bool, error) {
	got, _, err := Compute(d)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
