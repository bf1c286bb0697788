package chainclient

import (
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/gatewayerr"
)

// recoverOwner recovers a transaction's owner public key from its
// signature when a fetched transaction has an empty owner field
// (spec.md §4.H: "recover it from the signature via secp256k1 public-key
// recovery"). Only a 65-byte secp256k1 signature (the Ethereum-style
// ANS-104 sigType, data_item.SignatureConfig[Ethereum]) is recoverable
// this way — an RSA signature carries no recoverable public key, so any
// other length is reported as UnknownSignatureType rather than guessed
// at.
func (c *Client) recoverOwner(tx *Transaction) ([]byte, error) {
	sig, err := crypto.Base64URLDecode(tx.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding signature: %v", gatewayerr.ErrUnknownSignatureType, err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("%w: signature length %d is not secp256k1-recoverable", gatewayerr.ErrUnknownSignatureType, len(sig))
	}

	id, err := crypto.Base64URLDecode(tx.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding tx id: %v", gatewayerr.ErrUnknownSignatureType, err)
	}
	messageHash := gethcrypto.Keccak256(id)

	pub, err := gethcrypto.SigToPub(messageHash, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: recovering public key: %v", gatewayerr.ErrUnknownSignatureType, err)
	}
	return gethcrypto.FromECDSAPub(pub), nil
}
