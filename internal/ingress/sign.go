package ingress

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
)

// addressFromUserID recovers the 20-byte Ethereum address a domain.UserID
// encodes: the low 20 bytes of the 32-byte id, left-padded with zeroes the
// same way the EVM represents an address as a 32-byte word. A UserID whose
// top 12 bytes are non-zero was never derived from a signing key and can
// never pass verification.
func addressFromUserID(id domain.UserID) (common.Address, bool) {
	for _, b := range id[:12] {
		if b != 0 {
			return common.Address{}, false
		}
	}
	var addr common.Address
	copy(addr[:], id[12:])
	return addr, true
}

// canonicalBody re-marshals env with Signature cleared, the exact bytes
// the signature covers. Re-marshaling rather than hashing the raw request
// body means field order and whitespace in the original request can never
// affect whether a signature verifies.
func canonicalBody(env *Envelope) ([]byte, error) {
	stripped := *env
	stripped.Signature = ""
	return json.Marshal(stripped)
}

// VerifySignature checks env.Signature against the address its UserID
// encodes: Keccak256 the canonical body, crypto.Ecrecover the public key
// out of the signature, derive its address, and compare.
func VerifySignature(env *Envelope) *errs.ValidationError {
	if env.UserID == nil {
		// Commands with no user_id (OPEN, CLOSE, NEW_SYMBOL, DUMP, ...)
		// are operator actions, not user actions, and carry no signature.
		return nil
	}
	if env.Signature == "" {
		return errs.NewValidation(errs.BadRequest, "missing signature")
	}

	id, err := decodeUserID(*env.UserID)
	if err != nil {
		return errs.NewValidation(errs.BadRequest, "invalid user_id: %v", err)
	}
	expected, ok := addressFromUserID(id)
	if !ok {
		return errs.NewValidation(errs.BadRequest, "user_id does not encode a signing address")
	}

	sig, err := hex.DecodeString(trimHexPrefix(env.Signature))
	if err != nil || len(sig) != 65 {
		return errs.NewValidation(errs.BadRequest, "signature must be 65 hex-encoded bytes")
	}

	body, err := canonicalBody(env)
	if err != nil {
		return errs.NewValidation(errs.BadRequest, "canonicalize body: %v", err)
	}
	hash := crypto.Keccak256(body)

	// crypto.Ecrecover wants a recovery id in sig[64] of 0 or 1; Ethereum
	// wallets commonly produce 27/28, so normalize before recovering.
	normSig := append([]byte(nil), sig...)
	if normSig[64] >= 27 {
		normSig[64] -= 27
	}

	pubBytes, err := crypto.Ecrecover(hash, normSig)
	if err != nil {
		return errs.NewValidation(errs.BadRequest, "recover signer: %v", err)
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return errs.NewValidation(errs.BadRequest, "unmarshal signer pubkey: %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != expected {
		return errs.NewValidation(errs.NotOwner, "signature does not match user_id %s: recovered %s", fmt.Sprintf("0x%x", id), recovered.Hex())
	}
	return nil
}
