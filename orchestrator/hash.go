package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// computeFileHash returns the SHA-256 hex digest of the file at path,
// streamed through io.Copy so arbitrarily large manuscripts never need
// to be held in memory at once.
func computeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// computeFixHash identifies a fix-mode run by both the original and
// the draft translation, so a translate-mode run and a fix-mode run
// over the same file never collide on book identity.
func computeFixHash(originalPath, translationPath string) (string, error) {
	originalHash, err := computeFileHash(originalPath)
	if err != nil {
		return "", err
	}
	translationHash, err := computeFileHash(translationPath)
	if err != nil {
		return "", err
	}
	return digestString(strings.Join([]string{"fix", originalHash, translationHash}, "|")), nil
}

// computeFixStyleHash identifies a fix-style (polish) run, which has
// no original to hash against.
func computeFixStyleHash(translationPath, targetLang string) (string, error) {
	translationHash, err := computeFileHash(translationPath)
	if err != nil {
		return "", err
	}
	return digestString(strings.Join([]string{"fix_style", strings.ToLower(targetLang), translationHash}, "|")), nil
}
