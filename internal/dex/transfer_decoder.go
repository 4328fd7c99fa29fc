package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"positionScope/internal/model"
)

// TransferDecoder decodes ERC-721 Transfer events of the position manager.
type TransferDecoder struct {
	event abi.Event
}

// NewTransferDecoder builds a Transfer decoder.
func NewTransferDecoder() (*TransferDecoder, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	event, ok := managerABI.Events["Transfer"]
	if !ok {
		return nil, fmt.Errorf("transfer event missing from abi")
	}
	return &TransferDecoder{event: event}, nil
}

// Topic returns the Transfer topic0.
func (d *TransferDecoder) Topic() common.Hash {
	return d.event.ID
}

// CanDecode checks if the topic0 is a Transfer.
func (d *TransferDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	return strings.EqualFold(topic0, d.event.ID.Hex())
}

// Decode converts a LogRecord into a TransferEvent.
func (d *TransferDecoder) Decode(log model.LogRecord) (model.TransferEvent, error) {
	if len(log.Topics) == 0 {
		return model.TransferEvent{}, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return model.TransferEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return model.TransferEvent{}, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
		Id   *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return model.TransferEvent{}, fmt.Errorf("parse topics: %w", err)
	}
	if indexed.Id == nil {
		return model.TransferEvent{}, fmt.Errorf("transfer without token id")
	}

	return model.TransferEvent{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		From:        indexed.From.Hex(),
		To:          indexed.To.Hex(),
		TokenID:     indexed.Id.String(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
