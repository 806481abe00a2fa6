package lnd

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/satsub/satsub/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

var addressTypes = map[ports.AddressType]lnrpc.AddressType{
	ports.AddressP2SHSegwit: lnrpc.AddressType_NESTED_PUBKEY_HASH,
	ports.AddressBech32:     lnrpc.AddressType_WITNESS_PUBKEY_HASH,
}

type service struct {
	client   lnrpc.LightningClient
	conn     *grpc.ClientConn
	macaroon string
}

// NewService connects to the LND on-chain wallet described by an
// lndconnect:// url.
func NewService(ctx context.Context, lndconnectUrl string) (ports.WalletService, error) {
	if len(lndconnectUrl) == 0 {
		return nil, fmt.Errorf("empty lnurl")
	}

	conn, macaroon, err := deriveLndConnFromUrl(lndconnectUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to get client: %v", err)
	}
	client := lnrpc.NewLightningClient(conn)

	info, err := client.GetInfo(getCtx(ctx, macaroon), &lnrpc.GetInfoRequest{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to get info: %v", err)
	}
	if len(info.GetVersion()) == 0 {
		conn.Close()
		return nil, fmt.Errorf("something went wrong, version is empty")
	}

	log.Infof(
		"connected to LND version %s with pubkey %s",
		info.GetVersion(), info.GetIdentityPubkey(),
	)

	return &service{client, conn, macaroon}, nil
}

func (s *service) NewAddress(
	ctx context.Context, addrType ports.AddressType,
) (string, error) {
	lndType, ok := addressTypes[addrType]
	if !ok {
		return "", fmt.Errorf("address type %s not supported by lnd", addrType)
	}
	resp, err := s.client.NewAddress(
		getCtx(ctx, s.macaroon), &lnrpc.NewAddressRequest{Type: lndType},
	)
	if err != nil {
		return "", err
	}
	return resp.GetAddress(), nil
}

func (s *service) SendToAddress(
	ctx context.Context, address string, sats uint64,
) (string, error) {
	resp, err := s.client.SendCoins(getCtx(ctx, s.macaroon), &lnrpc.SendCoinsRequest{
		Addr:   address,
		Amount: int64(sats),
		Label:  "satsub swap",
	})
	if err != nil {
		return "", err
	}
	return resp.GetTxid(), nil
}

func (s *service) GetTransaction(
	ctx context.Context, txid string,
) (*ports.WalletTx, error) {
	resp, err := s.client.GetTransactions(
		getCtx(ctx, s.macaroon), &lnrpc.GetTransactionsRequest{},
	)
	if err != nil {
		return nil, err
	}
	for _, tx := range resp.GetTransactions() {
		if tx.GetTxHash() == txid {
			return &ports.WalletTx{
				Txid:          txid,
				Confirmations: int64(tx.GetNumConfirmations()),
				Amount:        tx.GetAmount(),
			}, nil
		}
	}
	return nil, fmt.Errorf("tx %s not found in wallet", txid)
}

func (s *service) Balance(ctx context.Context) (uint64, error) {
	resp, err := s.client.WalletBalance(
		getCtx(ctx, s.macaroon), &lnrpc.WalletBalanceRequest{},
	)
	if err != nil {
		return 0, err
	}
	return uint64(resp.GetConfirmedBalance()), nil
}

func (s *service) Close() {
	s.conn.Close()
}
