// Package ownership proves and checks that a provider controls a Polygon
// wallet. The provider signs a fixed message embedding its network identity
// (hotkey) with the wallet key using the EIP-191 personal-message scheme;
// any scorer can recover the signer and compare it to the claimed wallet.
package ownership

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rony4d/go-drain-scorer/inter/proof"
)

// MessagePrefix is followed by the provider's network identity.
const MessagePrefix = "Bittensor Subnet 58 Miner: "

// Message returns the exact text a provider signs.
func Message(identity string) string {
	return MessagePrefix + identity
}

// Sign produces the hex ownership proof for identity with the wallet key.
func Sign(key *ecdsa.PrivateKey, identity string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(Message(identity))), key)
	if err != nil {
		return "", err
	}
	s, err := proof.FromBytes(sig)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// Recover returns the wallet address that produced signature over the
// message for identity.
func Recover(signature string, identity string) (string, error) {
	s, err := proof.FromString(signature)
	if err != nil {
		return "", err
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(Message(identity))), s.Recoverable())
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify reports whether signature was made by claimedWallet over the
// message for identity. Wallets compare case-insensitively. Malformed input
// of any kind yields false.
func Verify(claimedWallet string, signature string, identity string) bool {
	if claimedWallet == "" || signature == "" {
		return false
	}
	recovered, err := Recover(signature, identity)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, strings.TrimSpace(claimedWallet))
}
