package crypto

import (
	"fmt"
	"net"
	"os"
	"time"

	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"path/filepath"

	"github.com/pkg/errors"
)

// Structs

// PKIOptions controls GeneratePKI.
type PKIOptions struct {
	// Dir receives root-cert.pem, root-key.pem and
	// <name>-cert.pem plus <name>-key.pem per replica.
	Dir string
	// Names of the replicas to issue certificates for.
	Names []string
	// Hosts are IP addresses or DNS names put into
	// every replica certificate.
	Hosts     []string
	NotBefore time.Time
	ValidFor  time.Duration
	RSABits   int
}

// Functions

// bootstrapCertTempl returns a certificate template that
// has all default values for our certificates already set.
func bootstrapCertTempl(nBef time.Time, nAft time.Time) (*x509.Certificate, error) {

	// For serial number generation we need a biggest
	// number to mark the range of the serial number.
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)

	// Now generate that random number.
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate random serial number")
	}

	return &x509.Certificate{
		SignatureAlgorithm:    x509.SHA512WithRSA,
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"orset internal PKI"}},
		NotBefore:             nBef,
		NotAfter:              nAft,
		BasicConstraintsValid: true,
	}, nil
}

// writePEM encodes der as a PEM block of type blockType
// into the file at path with the given permissions.
func writePEM(path string, blockType string, der []byte, perm os.FileMode) error {

	f, err := os.OpenFile(path, (os.O_WRONLY | os.O_CREATE | os.O_TRUNC), perm)
	if err != nil {
		return errors.Wrapf(err, "failed to open '%s'", path)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return errors.Wrapf(err, "failed to write PEM block to '%s'", path)
	}

	return f.Sync()
}

// createNodeCert obtains a replica's key pair and a
// certificate signed by the root certificate.
func createNodeCert(opts PKIOptions, name string, nAft time.Time, rootCert *x509.Certificate, rootKey *rsa.PrivateKey) error {

	key, err := rsa.GenerateKey(rand.Reader, opts.RSABits)
	if err != nil {
		return errors.Wrapf(err, "failed to generate key for %s", name)
	}

	template, err := bootstrapCertTempl(opts.NotBefore, nAft)
	if err != nil {
		return err
	}

	// Set specific certificate values for a replica certificate.
	template.Subject.CommonName = name
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}

	for _, host := range opts.Hosts {

		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, rootCert, &key.PublicKey, rootKey)
	if err != nil {
		return errors.Wrapf(err, "failed to create certificate for %s", name)
	}

	if err := writePEM(filepath.Join(opts.Dir, fmt.Sprintf("%s-cert.pem", name)), "CERTIFICATE", certDER, 0644); err != nil {
		return err
	}

	return writePEM(filepath.Join(opts.Dir, fmt.Sprintf("%s-key.pem", name)), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0600)
}

// GeneratePKI creates a self-signed root certificate and
// one certificate per replica name signed by it.
func GeneratePKI(opts PKIOptions) error {

	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now()
	}

	if opts.ValidFor == 0 {
		opts.ValidFor = 90 * 24 * time.Hour
	}

	if opts.RSABits == 0 {
		opts.RSABits = 2048
	}

	if len(opts.Hosts) == 0 {
		opts.Hosts = []string{"127.0.0.1", "localhost"}
	}

	notAfter := opts.NotBefore.Add(opts.ValidFor)

	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return errors.Wrapf(err, "failed to create PKI directory '%s'", opts.Dir)
	}

	rootKey, err := rsa.GenerateKey(rand.Reader, opts.RSABits)
	if err != nil {
		return errors.Wrap(err, "failed to generate root key")
	}

	rootTemplate, err := bootstrapCertTempl(opts.NotBefore, notAfter)
	if err != nil {
		return err
	}

	// Set specific certificate values for the root certificate.
	rootTemplate.Subject.CommonName = "orset root"
	rootTemplate.IsCA = true
	rootTemplate.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign

	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	if err != nil {
		return errors.Wrap(err, "failed to create root certificate")
	}

	rootCert, err := x509.ParseCertificate(rootDER)
	if err != nil {
		return errors.Wrap(err, "failed to parse freshly created root certificate")
	}

	if err := writePEM(filepath.Join(opts.Dir, "root-cert.pem"), "CERTIFICATE", rootDER, 0644); err != nil {
		return err
	}

	if err := writePEM(filepath.Join(opts.Dir, "root-key.pem"), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(rootKey), 0600); err != nil {
		return err
	}

	for _, name := range opts.Names {

		if err := createNodeCert(opts, name, notAfter, rootCert, rootKey); err != nil {
			return err
		}
	}

	return nil
}
