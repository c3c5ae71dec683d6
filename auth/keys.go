// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the signing-key management behind authenticated
// push notification callbacks: ECDSA key generation, ES256 JWT signing,
// JWKS publication and token verification.
package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// JWKSPath is the well-known path where the key set is served.
const JWKSPath = "/.well-known/jwks.json"

// JSONWebKey is a public key in JWK format.
type JSONWebKey struct {
	KID string `json:"kid"`
	KTY string `json:"kty"`
	ALG string `json:"alg"`
	USE string `json:"use"`
	CRV string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JSONWebKeySet is the document served at JWKSPath.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// KeyPair holds a private key and its public JWK.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicJWK  JSONWebKey
}

// KeyManager manages ECDSA P-256 key pairs for JWT signing.
type KeyManager struct {
	mu       sync.RWMutex
	keyPairs map[string]*KeyPair
	jwks     JSONWebKeySet
}

// NewKeyManager creates an empty key manager.
func NewKeyManager() *KeyManager {
	return &KeyManager{
		keyPairs: make(map[string]*KeyPair),
	}
}

// GenerateKeyPair generates a P-256 key pair under the given key id and
// adds its public half to the key set.
func (m *KeyManager) GenerateKeyPair(kid string) (*KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	jwk := JSONWebKey{
		KID: kid,
		KTY: "EC",
		ALG: "ES256",
		USE: "sig",
		CRV: "P-256",
		// Coordinates are fixed-width per RFC 7518; Bytes would drop
		// leading zeros.
		X:   base64.RawURLEncoding.EncodeToString(privateKey.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(privateKey.Y.FillBytes(make([]byte, 32))),
	}

	keyPair := &KeyPair{PrivateKey: privateKey, PublicJWK: jwk}
	m.keyPairs[kid] = keyPair
	m.jwks.Keys = append(m.jwks.Keys, jwk)
	return keyPair, nil
}

// GetKeyPair returns a key pair by key id.
func (m *KeyManager) GetKeyPair(kid string) (*KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keyPair, ok := m.keyPairs[kid]
	if !ok {
		return nil, fmt.Errorf("key pair not found: %s", kid)
	}
	return keyPair, nil
}

// JWKS returns the public key set.
func (m *KeyManager) JWKS() JSONWebKeySet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jwks
}

// SignJWT signs the claims with the key pair under kid using ES256.
func (m *KeyManager) SignJWT(kid string, claims jwt.Claims) (string, error) {
	keyPair, err := m.GetKeyPair(kid)
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = kid
	return token.SignedString(keyPair.PrivateKey)
}

// JWKSHandler serves the public key set.
func (m *KeyManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.JWKS())
	}
}

// ParseECKey reconstructs the public key from a JWK.
func ParseECKey(jwk JSONWebKey) (*ecdsa.PublicKey, error) {
	if jwk.KTY != "EC" {
		return nil, fmt.Errorf("unsupported key type: %s", jwk.KTY)
	}
	if jwk.CRV != "P-256" {
		return nil, fmt.Errorf("unsupported curve: %s", jwk.CRV)
	}
	xData, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x coordinate: %w", err)
	}
	yData, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y coordinate: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xData),
		Y:     new(big.Int).SetBytes(yData),
	}, nil
}

// VerifyJWT parses and verifies a token against the key set, resolving the
// key by the kid header.
func VerifyJWT(tokenString string, jwks JSONWebKeySet, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid not found in token header")
		}
		for _, jwk := range jwks.Keys {
			if jwk.KID == kid {
				return ParseECKey(jwk)
			}
		}
		return nil, fmt.Errorf("key not found: %s", kid)
	})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return errors.New("token is invalid")
	}
	return nil
}
