package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestERC20ABIPacksBalanceOf(t *testing.T) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data, err := parsed.Pack("balanceOf", owner)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	// selector + one padded address word
	if len(data) != 4+32 {
		t.Fatalf("calldata length = %d", len(data))
	}
	if common.Bytes2Hex(data[:4]) != "70a08231" {
		t.Fatalf("unexpected selector %x", data[:4])
	}

	word := make([]byte, 32)
	big.NewInt(12345).FillBytes(word)
	values, err := parsed.Unpack("balanceOf", word)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if bal, ok := values[0].(*big.Int); !ok || bal.Int64() != 12345 {
		t.Fatalf("unexpected balance %v", values[0])
	}
}

func TestERC20ABIDecimals(t *testing.T) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	word := make([]byte, 32)
	word[31] = 18
	values, err := parsed.Unpack("decimals", word)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if d, ok := values[0].(uint8); !ok || d != 18 {
		t.Fatalf("unexpected decimals %v", values[0])
	}
}
