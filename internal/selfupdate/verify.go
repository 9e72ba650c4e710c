package selfupdate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

const (
	maxKeySize       = 100 * 1024
	maxSignatureSize = 10 * 1024
)

var fingerprintPattern = regexp.MustCompile(`^[0-9A-F]{40}$`)

// ParseFingerprint normalizes a fingerprint written with or without spaces.
func ParseFingerprint(fp string) (string, error) {
	fp = strings.ToUpper(strings.ReplaceAll(fp, " ", ""))
	if !fingerprintPattern.MatchString(fp) {
		return "", fmt.Errorf("invalid fingerprint %q: want 40 hex characters", fp)
	}
	return fp, nil
}

// Verifier checks detached PGP signatures against one pinned key.
type Verifier struct {
	keyRing     *crypto.KeyRing
	fingerprint string
}

// NewVerifier parses an armored public key and checks that its
// fingerprint matches the pinned one.
func NewVerifier(armoredKey, fingerprint string) (*Verifier, error) {
	want, err := ParseFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}
	key, err := crypto.NewKeyFromArmored(armoredKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse update signing key: %w", err)
	}
	if got := strings.ToUpper(key.GetFingerprint()); got != want {
		return nil, fmt.Errorf("update signing key fingerprint mismatch: expected %s, got %s", want, got)
	}
	ring, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyring: %w", err)
	}
	return &Verifier{keyRing: ring, fingerprint: want}, nil
}

// LoadVerifier reads the armored key at path.
func LoadVerifier(path, fingerprint string) (*Verifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open update signing key: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxKeySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read update signing key: %w", err)
	}
	if len(data) > maxKeySize {
		return nil, fmt.Errorf("update signing key exceeds %d bytes", maxKeySize)
	}
	return NewVerifier(string(data), fingerprint)
}

// Fingerprint returns the pinned fingerprint.
func (v *Verifier) Fingerprint() string { return v.fingerprint }

// VerifyFile checks sig, armored or binary, against the file at path.
func (v *Verifier) VerifyFile(path string, sig []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bundle for signature check: %w", err)
	}
	signature, err := crypto.NewPGPSignatureFromArmored(string(sig))
	if err != nil {
		signature = crypto.NewPGPSignature(sig)
	}
	if err := v.keyRing.VerifyDetached(crypto.NewPlainMessage(data), signature, 0); err != nil {
		return fmt.Errorf("bundle signature verification failed: %w", err)
	}
	return nil
}

// fetchSignature downloads a detached signature.
func fetchSignature(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signature: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch signature: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSignatureSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}
	if len(data) > maxSignatureSize {
		return nil, fmt.Errorf("signature exceeds %d bytes", maxSignatureSize)
	}
	return data, nil
}
