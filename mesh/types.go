package mesh

// ProductScope is the vendor feature a link session is allowed to use.
type ProductScope string

const (
	// ProductConnect links an account for read access (portfolio, balances).
	ProductConnect ProductScope = "connect"

	// ProductPay links an account for outbound transfers.
	ProductPay ProductScope = "pay"
)

// LinkTokenRequest asks the vendor for a new link token. Both fields are
// optional; an empty request gets the default connect scope.
type LinkTokenRequest struct {
	Products []string `json:"products,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

// PayRequest executes a transfer from a linked account.
type PayRequest struct {
	AccessToken   string  `json:"accessToken"`
	Amount        float64 `json:"amount"`
	Network       string  `json:"network,omitempty"`
	ToAddress     string  `json:"toAddress"`
	Memo          string  `json:"memo,omitempty"`
	Asset         string  `json:"asset,omitempty"`
	TwoFactorCode string  `json:"twoFactorCode,omitempty"`
}

// PayResult is the vendor's transfer execution result. TxID is present on
// success.
type PayResult struct {
	TxID       string `json:"txId,omitempty"`
	TransferID string `json:"transferId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// PortfolioRequest fetches holdings for a linked account. AccountID and
// Type narrow the result when set.
type PortfolioRequest struct {
	AccessToken string `json:"accessToken"`
	AccountID   string `json:"accountId,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Portfolio is the holdings snapshot for a linked account.
type Portfolio struct {
	Balances  []Balance  `json:"balances"`
	Positions []Position `json:"positions"`
}

// Balance is a cash or asset balance in the linked account.
type Balance struct {
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
	Fiat   float64 `json:"fiatValue,omitempty"`
}

// Position is a held instrument in the linked account.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	CostBasis   float64 `json:"costBasis,omitempty"`
	MarketValue float64 `json:"marketValue,omitempty"`
	LastPrice   float64 `json:"lastPrice,omitempty"`
}
