// Package keys holds node key material.
//
// The overlay core treats a private key as an opaque Signer handle; this
// package provides Ed25519 and Dilithium3 signers, the derivation of a
// node's overlay address from its public key, and a small filesystem
// keystore. Certificates and trust decisions are out of scope.
package keys
