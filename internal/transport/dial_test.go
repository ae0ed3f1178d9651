package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc/credentials/insecure"
)

func TestTransportCredentialsDisabledIsInsecure(t *testing.T) {
	creds, err := transportCredentials(TLSConfig{Enabled: false})
	if err != nil {
		t.Fatalf("transportCredentials: %v", err)
	}
	if creds.Info().SecurityProtocol != insecure.NewCredentials().Info().SecurityProtocol {
		t.Errorf("expected insecure credentials when TLSConfig.Enabled is false, got %q", creds.Info().SecurityProtocol)
	}
}

func TestTransportCredentialsLoadsRootAndClientCert(t *testing.T) {
	dir := t.TempDir()
	rootPath, certPath, keyPath := writeTestCertFiles(t, dir)

	creds, err := transportCredentials(TLSConfig{
		Enabled:        true,
		RootCertsPath:  rootPath,
		ClientCertPath: certPath,
		ClientKeyPath:  keyPath,
	})
	if err != nil {
		t.Fatalf("transportCredentials: %v", err)
	}
	if creds.Info().SecurityProtocol != "tls" {
		t.Errorf("SecurityProtocol = %q, want tls", creds.Info().SecurityProtocol)
	}
}

func TestTransportCredentialsRejectsUnreadableRootCerts(t *testing.T) {
	_, err := transportCredentials(TLSConfig{
		Enabled:       true,
		RootCertsPath: filepath.Join(t.TempDir(), "does-not-exist.pem"),
	})
	if err == nil {
		t.Fatal("expected an error for a missing root certs file")
	}
}

func TestTransportCredentialsRejectsEmptyRootCerts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pem")
	if err := os.WriteFile(path, []byte("not a cert"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, err := transportCredentials(TLSConfig{Enabled: true, RootCertsPath: path})
	if err == nil {
		t.Fatal("expected an error for a root certs file with no usable certificates")
	}
}

// writeTestCertFiles generates a minimal self-signed certificate/key pair
// and writes it to dir, returning (rootCertsPath, clientCertPath, clientKeyPath).
func writeTestCertFiles(t *testing.T, dir string) (string, string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "broker-test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	certPath := filepath.Join(dir, "client.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("writing cert: %v", err)
	}

	keyPath := filepath.Join(dir, "client-key.pem")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}

	return certPath, certPath, keyPath
}
