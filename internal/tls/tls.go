// Package tls builds TLS configurations for direct-TLS SMTP connections and
// self-signed certificates for local test servers.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// ClientOptions controls how the server certificate is verified.
type ClientOptions struct {
	// ServerName overrides the name checked against the certificate.
	ServerName string

	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string

	// CAPEM is an in-memory PEM bundle, used like CAFile.
	CAPEM []byte

	// InsecureSkipVerify disables verification entirely.
	InsecureSkipVerify bool
}

// ClientConfig returns a TLS 1.2+ client configuration for opts.
func ClientConfig(opts ClientOptions) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         opts.ServerName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed relays
	}

	if opts.CAFile == "" && len(opts.CAPEM) == 0 {
		return cfg, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	bundle := opts.CAPEM
	if opts.CAFile != "" {
		data, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		bundle = append(append([]byte(nil), bundle...), data...)
	}
	if !pool.AppendCertsFromPEM(bundle) {
		return nil, errors.New("no certificates found in CA bundle")
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// SelfSigned is an in-memory certificate with its PEM encoding.
type SelfSigned struct {
	Certificate tls.Certificate
	CertPEM     []byte
}

// ServerConfig returns a TLS 1.2+ server configuration presenting the certificate.
func (s *SelfSigned) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{s.Certificate},
		MinVersion:   tls.VersionTLS12,
	}
}

// GenerateSelfSigned creates an ECDSA P-256 certificate valid for one year,
// with CN=localhost and SANs for localhost and 127.0.0.1. Nothing is
// written to disk.
func GenerateSelfSigned() (*SelfSigned, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to create X509 key pair: %w", err)
	}
	return &SelfSigned{Certificate: cert, CertPEM: certPEM}, nil
}
