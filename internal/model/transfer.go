package model

// TransferEvent is a decoded ERC-721 Transfer of a position NFT.
type TransferEvent struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	From        string `json:"from"`
	To          string `json:"to"`
	TokenID     string `json:"token_id"`
}
