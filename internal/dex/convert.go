package dex

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PoolKey mirrors the V4 PoolKey tuple as returned by the ABI decoder.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

// AsPoolKeys converts an unpacked tuple[] value into PoolKeys.
func AsPoolKeys(value interface{}) (keys []PoolKey, err error) {
	if value == nil {
		return nil, fmt.Errorf("pool keys: nil value")
	}
	// ConvertType panics on shape mismatch.
	defer func() {
		if r := recover(); r != nil {
			keys, err = nil, fmt.Errorf("pool keys: %v", r)
		}
	}()
	converted, ok := abi.ConvertType(value, new([]PoolKey)).(*[]PoolKey)
	if !ok || converted == nil {
		return nil, fmt.Errorf("pool keys: unsupported type %T", value)
	}
	return *converted, nil
}

// AsBigInts converts an unpacked integer array.
func AsBigInts(value interface{}) ([]*big.Int, error) {
	switch v := value.(type) {
	case []*big.Int:
		out := make([]*big.Int, len(v))
		for i, item := range v {
			if item == nil {
				return nil, fmt.Errorf("nil integer at %d", i)
			}
			out[i] = new(big.Int).Set(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported int array type %T", value)
	}
}

// AsAddresses converts an unpacked address array.
func AsAddresses(value interface{}) ([]common.Address, error) {
	switch v := value.(type) {
	case []common.Address:
		return append([]common.Address(nil), v...), nil
	default:
		return nil, fmt.Errorf("unsupported address array type %T", value)
	}
}

// AsBigInt converts an unpacked integer value.
func AsBigInt(value interface{}) (*big.Int, error) {
	return asBigInt(value)
}

// AsAddress converts an unpacked address value.
func AsAddress(value interface{}) (common.Address, error) {
	return asAddress(value)
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

// Int24FromBig narrows an ABI int24 value.
func Int24FromBig(value *big.Int) (int32, error) {
	if value == nil {
		return 0, fmt.Errorf("int24: nil value")
	}
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
