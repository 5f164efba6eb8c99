package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestCert writes a self-signed certificate valid for localhost and
// returns the cert and key paths.
func writeTestCert(t *testing.T, cn string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"sitekit test"}},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, cn+".pem")
	keyFile = filepath.Join(dir, cn+"-key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestServer(t *testing.T) {
	certFile, keyFile := writeTestCert(t, "localhost")

	cfg, err := Server(ServerConfig{})
	require.NoError(t, err)
	assert.Nil(t, cfg, "disabled")

	cfg, err = Server(ServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)

	cfg, err = Server(ServerConfig{
		Enabled: true, CertFile: certFile, KeyFile: keyFile,
		ClientCAFiles: []string{certFile}, RequireClientCert: true, AllowedClientCNs: []string{"editor"},
	})
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
	assert.NotNil(t, cfg.VerifyPeerCertificate)

	_, err = Server(ServerConfig{Enabled: true, CertFile: "/missing.pem", KeyFile: keyFile})
	assert.Error(t, err)

	_, err = Server(ServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientCAFiles: []string{keyFile}})
	assert.Error(t, err, "key file holds no certificates")
}

func TestClient(t *testing.T) {
	certFile, keyFile := writeTestCert(t, "localhost")

	cfg, err := Client(ClientConfig{})
	require.NoError(t, err)
	assert.NotNil(t, cfg.RootCAs)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.False(t, cfg.InsecureSkipVerify)

	cfg, err = Client(ClientConfig{CAFiles: []string{certFile}, CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)

	_, err = Client(ClientConfig{CAFiles: []string{filepath.Join(t.TempDir(), "none.pem")}})
	assert.Error(t, err)

	assert.True(t, ClientConfig{}.IsZero())
	assert.False(t, ClientConfig{InsecureSkipVerify: true}.IsZero())
}

func TestServerAndClientHandshake(t *testing.T) {
	certFile, keyFile := writeTestCert(t, "localhost")

	serverTLS, err := Server(ServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	srv.TLS = serverTLS
	srv.StartTLS()
	defer srv.Close()

	clientTLS, err := Client(ClientConfig{CAFiles: []string{certFile}})
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}, Timeout: 5 * time.Second}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVerifyAllowedClientCN(t *testing.T) {
	cert := &x509.Certificate{Subject: pkix.Name{CommonName: "editor"}}

	assert.NoError(t, verifyAllowedClientCN([][]*x509.Certificate{{cert}}, []string{"editor"}))
	assert.Error(t, verifyAllowedClientCN([][]*x509.Certificate{{cert}}, []string{"admin"}))
	assert.Error(t, verifyAllowedClientCN(nil, []string{"editor"}))
}
