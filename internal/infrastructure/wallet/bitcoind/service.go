package bitcoind

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/utils"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Host     string
	User     string
	Password string
	Network  string
}

type service struct {
	client *rpcclient.Client
	params *chaincfg.Params
}

// NewService returns a wallet backed by the bitcoind JSON-RPC wallet.
func NewService(cfg Config) (ports.WalletService, error) {
	params, err := utils.NetworkParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	if len(cfg.Host) == 0 {
		return nil, fmt.Errorf("missing bitcoind host")
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitcoind client: %w", err)
	}

	log.Infof("using bitcoind wallet at %s", cfg.Host)

	return &service{client, params}, nil
}

func (s *service) NewAddress(
	ctx context.Context, addrType ports.AddressType,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label, _ := json.Marshal("")
	kind, _ := json.Marshal(string(addrType))
	resp, err := s.client.RawRequest("getnewaddress", []json.RawMessage{label, kind})
	if err != nil {
		return "", err
	}

	var address string
	if err := json.Unmarshal(resp, &address); err != nil {
		return "", fmt.Errorf("invalid getnewaddress response: %w", err)
	}
	if !utils.IsValidBtcAddress(address, s.params) {
		return "", fmt.Errorf("wallet returned address %s for another network", address)
	}
	return address, nil
}

func (s *service) SendToAddress(
	ctx context.Context, address string, sats uint64,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := btcutil.DecodeAddress(address, s.params)
	if err != nil {
		return "", fmt.Errorf("invalid address %s: %w", address, err)
	}
	hash, err := s.client.SendToAddress(addr, btcutil.Amount(sats))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (s *service) GetTransaction(
	ctx context.Context, txid string,
) (*ports.WalletTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %s: %w", txid, err)
	}
	tx, err := s.client.GetTransaction(hash)
	if err != nil {
		return nil, err
	}
	amount, err := btcutil.NewAmount(tx.Amount)
	if err != nil {
		return nil, err
	}
	return &ports.WalletTx{
		Txid:          tx.TxID,
		Confirmations: tx.Confirmations,
		Amount:        int64(amount),
	}, nil
}

func (s *service) Balance(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	balance, err := s.client.GetBalance("*")
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		return 0, nil
	}
	return uint64(balance), nil
}

func (s *service) Close() {
	s.client.Shutdown()
}
