package crypto

import (
	"crypto/rsa"
	"math/big"
)

// GetAddressFromOwner derives an Arweave wallet address directly from a
// base64url-encoded RSA modulus (the transaction "owner" field).
func GetAddressFromOwner(owner string) (string, error) {
	publicKey, err := GetPublicKeyFromOwner(owner)
	if err != nil {
		return "", err
	}
	return GetAddressFromPublicKey(publicKey), nil
}

// GetPublicKeyFromOwner reconstructs an RSA public key from the
// base64url-encoded modulus used as the "owner" field on Arweave
// transactions and data items. Arweave always uses the public exponent
// 65537 ("AQAB").
func GetPublicKeyFromOwner(owner string) (*rsa.PublicKey, error) {
	data, err := Base64URLDecode(owner)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(data),
		E: 65537,
	}, nil
}

// GetAddressFromPublicKey returns the Arweave wallet address for an RSA
// public key: the base64url-encoded SHA-256 hash of the modulus.
func GetAddressFromPublicKey(p *rsa.PublicKey) string {
	return Base64URLEncode(SHA256(p.N.Bytes()))
}
