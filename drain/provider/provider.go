// Package provider is the peer side of the identity check: it proves
// ownership of a Polygon wallet once at startup and serves the proof to
// scorers over JSON-RPC.
package provider

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"

	"github.com/rony4d/go-drain-scorer/drain/claims"
	"github.com/rony4d/go-drain-scorer/drain/ownership"
	"github.com/rony4d/go-drain-scorer/inter/providercheck"
)

// Namespace is the RPC service name; with the Check method it forms
// providercheck.Method.
const Namespace = "provider"

var ErrWalletMismatch = errors.New("private key does not control the configured wallet")

// Config is the provider identity.
type Config struct {
	Identity   string // hotkey the proof is bound to
	Wallet     string
	PrivateKey string // hex, optional 0x
	APIURL     string
	ListenAddr string
}

// API is the RPC receiver.
type API struct {
	resp *providercheck.Response
}

// Check answers provider_check.
func (a *API) Check() *providercheck.Response {
	return a.resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NewAPI signs the ownership proof. Without a key the wallet is served
// unproven, which scorers treat as offline.
func NewAPI(cfg Config) (*API, error) {
	resp := &providercheck.Response{
		PolygonWallet: optional(cfg.Wallet),
		APIURL:        optional(cfg.APIURL),
	}
	if cfg.PrivateKey == "" {
		log.Warn("No Polygon private key configured, wallet proof will be empty")
		return &API{resp: resp}, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	wallet, err := walletFor(key, cfg.Wallet)
	if err != nil {
		return nil, err
	}
	sig, err := ownership.Sign(key, cfg.Identity)
	if err != nil {
		return nil, err
	}
	resp.PolygonWallet = &wallet
	resp.WalletProof = &sig

	log.WithFields(log.Fields{"wallet": wallet, "identity": cfg.Identity}).Info("Wallet ownership proof ready")
	return &API{resp: resp}, nil
}

func walletFor(key *ecdsa.PrivateKey, configured string) (string, error) {
	derived := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if configured == "" {
		return derived, nil
	}
	if claims.Key(configured) != claims.Key(derived) {
		return "", fmt.Errorf("%w: %s", ErrWalletMismatch, configured)
	}
	return configured, nil
}

// Handler returns the JSON-RPC HTTP handler serving api.
func Handler(api *API) (http.Handler, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(Namespace, api); err != nil {
		return nil, err
	}
	return srv, nil
}

// Serve listens on cfg.ListenAddr until ctx is done.
func Serve(ctx context.Context, cfg Config, api *API) error {
	h, err := Handler(api)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	log.WithField("addr", ln.Addr().String()).Info("Serving provider check")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		return nil
	}
}
