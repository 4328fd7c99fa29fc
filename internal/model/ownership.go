package model

// OwnershipState is the persisted progress of the NFT ownership scan.
// Owners maps a decimal token id to the owner's hex address.
type OwnershipState struct {
	LastBlock uint64            `json:"last_block"`
	Owners    map[string]string `json:"owners"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}
