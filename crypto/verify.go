package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
)

// Verify checks an RSA-PSS signature against the given data using the
// signer's public key, mirroring the salt/hash settings used by Sign.
func Verify(data []byte, signature []byte, publicKey *rsa.PublicKey) error {
	hashed := sha256.Sum256(data)
	return rsa.VerifyPSS(publicKey, crypto.SHA256, hashed[:], signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
}
