package ports

import (
	"context"
	"fmt"
)

type AddressType string

const (
	AddressLegacy     AddressType = "legacy"
	AddressP2SHSegwit AddressType = "p2sh-segwit"
	AddressBech32     AddressType = "bech32"
)

type WalletTx struct {
	Txid          string
	Confirmations int64
	Amount        int64
}

// WalletService is the on-chain wallet paying for swaps. Amounts are in sats.
type WalletService interface {
	NewAddress(ctx context.Context, addrType AddressType) (string, error)
	SendToAddress(ctx context.Context, address string, sats uint64) (string, error)
	GetTransaction(ctx context.Context, txid string) (*WalletTx, error)
	Balance(ctx context.Context) (uint64, error)
	Close()
}

func ParseAddressType(addrType string) (AddressType, error) {
	switch AddressType(addrType) {
	case AddressLegacy, AddressP2SHSegwit, AddressBech32:
		return AddressType(addrType), nil
	default:
		return "", fmt.Errorf(
			"invalid address type %q, must be one of legacy, p2sh-segwit, bech32", addrType,
		)
	}
}
