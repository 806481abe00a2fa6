package domain

// Swap holds the terms of the submarine swap that settles an order's invoice.
type Swap struct {
	Invoice              string
	RefundAddress        string
	SwapAmount           uint64 // sats to send on-chain
	SwapFee              uint64
	P2SHAddress          string
	P2SHP2WSHAddress     string
	P2WSHAddress         string
	RedeemScript         string
	PaymentHash          string
	DestinationPublicKey string
	TimeoutBlockHeight   uint32
	// PaymentSecret is set once the swap server paid the invoice.
	PaymentSecret string
}

func (s Swap) IsSettled() bool {
	return len(s.PaymentSecret) > 0
}

// BroadcastOrder is the satellite service's view of an order.
type BroadcastOrder struct {
	Uuid          string
	AuthToken     string
	BidMsat       uint64
	InvoiceId     string
	Payreq        string
	Rhash         string
	MessageDigest string
	ExpiresAt     int64
	Status        string
	Bumps         []BidBump
}

// BidBump records an increase of the bid of an accepted broadcast order.
type BidBump struct {
	IncreaseMsat uint64
	Payreq       string
	Timestamp    int64
}
