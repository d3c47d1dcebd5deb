package crypto

import (
	"os"

	"crypto/tls"
	"crypto/x509"

	"github.com/pkg/errors"
)

// Functions

// NewInternalTLSConfig returns the mutual TLS config
// replicas use among each other. Both sides present the
// certificate at certPath and accept only peers whose
// certificate chains up to the root at rootCertPath.
// A replica certificate not issued by that root is
// rejected here instead of at the first handshake.
func NewInternalTLSConfig(certPath string, keyPath string, rootCertPath string) (*tls.Config, error) {

	roots, err := loadRootPool(rootCertPath)
	if err != nil {
		return nil, err
	}

	cert, err := loadReplicaCert(certPath, keyPath, roots)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		RootCAs:          roots,
		ClientCAs:        roots,
		ClientAuth:       tls.RequireAndVerifyClientCert,
		Certificates:     []tls.Certificate{cert},
		MinVersion:       tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}, nil
}

// loadRootPool reads the PEM encoded root
// certificate at path into a fresh pool.
func loadRootPool(path string) (*x509.CertPool, error) {

	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read root certificate %s", path)
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pemData) {
		return nil, errors.Errorf("no usable certificate in %s", path)
	}

	return roots, nil
}

// loadReplicaCert loads the replica key pair and
// checks that roots vouch for it in both TLS roles.
func loadReplicaCert(certPath string, keyPath string, roots *x509.CertPool) (tls.Certificate, error) {

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "failed to load key pair %s", certPath)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "failed to parse %s", certPath)
	}

	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "certificate %s is not trusted by the configured root", certPath)
	}
	cert.Leaf = leaf

	return cert, nil
}
