// Package webtransportpeer implements the WebTransport transport peer
// (component E): a QUIC/HTTP3 server endpoint presenting a pinned TLS
// identity, video datagrams, a server-initiated audio stream, and
// client-opened bidirectional input streams.
//
// No certificate-generation library appears anywhere in the example
// corpus; Identity is built directly on crypto/tls and crypto/x509 rather
// than inventing a dependency the rest of the pack never reaches for.
package webtransportpeer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Identity is the TLS certificate this endpoint presents to clients, plus
// the leaf certificate's hex-encoded SHA-256 fingerprint so browsers can
// pin it (§6, "Certificate hash").
type Identity struct {
	Certificate tls.Certificate
	LeafSHA256  string
}

// LoadOrGenerateIdentity loads a PEM cert/key pair from disk, or generates
// a self-signed ECDSA identity valid for 365 days when selfSigned is true.
func LoadOrGenerateIdentity(certFile, keyFile string, selfSigned bool) (*Identity, error) {
	if selfSigned {
		return generateSelfSigned()
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("webtransportpeer: load cert/key: %w", err)
	}
	return identityFromCertificate(cert)
}

func generateSelfSigned() (*Identity, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("webtransportpeer: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("webtransportpeer: generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "moonlight-web-go gateway"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.AddDate(1, 0, 0), // 365 days
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         false,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("webtransportpeer: create certificate: %w", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return identityFromCertificate(cert)
}

func identityFromCertificate(cert tls.Certificate) (*Identity, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("webtransportpeer: certificate has no leaf")
	}
	sum := sha256.Sum256(cert.Certificate[0])
	return &Identity{
		Certificate: cert,
		LeafSHA256:  hex.EncodeToString(sum[:]),
	}, nil
}

// TLSConfig builds the server tls.Config from this identity, with
// "h3" negotiated via ALPN as webtransport-go requires.
func (id *Identity) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.Certificate},
		NextProtos:   []string{"h3"},
	}
}
