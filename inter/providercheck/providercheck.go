// Package providercheck defines the identity-check exchange between a scorer
// and a provider. The scorer sends an empty Request; the provider answers
// with its Polygon wallet, the ownership proof for that wallet and the URL of
// its public API. Each response field is optional on the wire, and a missing
// field is distinct from an empty one only for logging purposes: scoring
// treats both as absent.
package providercheck

// Method is the JSON-RPC method name providers serve.
const Method = "provider_check"

// Request carries no fields.
type Request struct{}

// Response is a provider's answer.
type Response struct {
	PolygonWallet *string `json:"polygon_wallet"`
	WalletProof   *string `json:"wallet_proof"`
	APIURL        *string `json:"api_url"`
}

// NewResponse builds a fully populated Response.
func NewResponse(wallet, proof, apiURL string) *Response {
	return &Response{
		PolygonWallet: &wallet,
		WalletProof:   &proof,
		APIURL:        &apiURL,
	}
}

func value(p *string) (string, bool) {
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// Wallet returns the claimed wallet address, if present.
func (r *Response) Wallet() (string, bool) {
	if r == nil {
		return "", false
	}
	return value(r.PolygonWallet)
}

// Proof returns the hex ownership signature, if present.
func (r *Response) Proof() (string, bool) {
	if r == nil {
		return "", false
	}
	return value(r.WalletProof)
}

// Endpoint returns the advertised API URL, if present.
func (r *Response) Endpoint() (string, bool) {
	if r == nil {
		return "", false
	}
	return value(r.APIURL)
}

// Complete reports whether both the wallet and the proof are present. An
// incomplete response scores like no response at all.
func (r *Response) Complete() bool {
	_, hasWallet := r.Wallet()
	_, hasProof := r.Proof()
	return hasWallet && hasProof
}
