// Package proof holds the wallet-ownership signature a provider presents to
// scorers: a 65-byte secp256k1 [R || S || V] signature over the provider's
// personal-message text. The value type only parses and prints; recovery and
// comparison live in drain/ownership.
package proof

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of a recoverable secp256k1 signature.
const SignatureLength = crypto.SignatureLength

var (
	ErrEmptySignature = errors.New("empty signature")
	ErrBadLength      = errors.New("signature must be 65 bytes")
	ErrBadRecoveryID  = errors.New("signature recovery id must be 0, 1, 27 or 28")
)

// Signature is a parsed ownership signature.
type Signature struct {
	raw [SignatureLength]byte
}

// FromString parses a hex signature with or without the 0x prefix.
func FromString(str string) (Signature, error) {
	str = strings.TrimSpace(str)
	if str == "" || str == "0x" || str == "0X" {
		return Signature{}, ErrEmptySignature
	}
	if !strings.HasPrefix(str, "0x") && !strings.HasPrefix(str, "0X") {
		str = "0x" + str
	}
	b, err := hexutil.Decode("0x" + str[2:])
	if err != nil {
		return Signature{}, err
	}
	return FromBytes(b)
}

// FromBytes parses a raw 65-byte signature. V may be in the Ethereum
// (27/28) or raw (0/1) convention.
func FromBytes(b []byte) (Signature, error) {
	if len(b) == 0 {
		return Signature{}, ErrEmptySignature
	}
	if len(b) != SignatureLength {
		return Signature{}, ErrBadLength
	}
	switch b[64] {
	case 0, 1, 27, 28:
	default:
		return Signature{}, ErrBadRecoveryID
	}
	var s Signature
	copy(s.raw[:], b)
	return s, nil
}

// Bytes returns the signature in the Ethereum convention, V in {27, 28}.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out, s.raw[:])
	if out[64] < 27 {
		out[64] += 27
	}
	return out
}

// Recoverable returns the signature with V in {0, 1}, as crypto.SigToPub
// expects.
func (s Signature) Recoverable() []byte {
	out := make([]byte, SignatureLength)
	copy(out, s.raw[:])
	if out[64] >= 27 {
		out[64] -= 27
	}
	return out
}

// String returns the 0x-prefixed hex form.
func (s Signature) String() string {
	return hexutil.Encode(s.Bytes())
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*s = res
	return nil
}
