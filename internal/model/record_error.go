package model

// RecordError records a per-record failure during a reconciliation pass.
// The record is dropped; the pass continues.
type RecordError struct {
	Kind    string `json:"kind"`
	TokenID string `json:"token_id"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}
