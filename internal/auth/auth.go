// Package auth resolves the Gemini API key from the OS keychain, with
// an explicitly opted-in environment fallback.
package auth

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	serviceName   = "doctrans"
	geminiAccount = "gemini-api-key"
	geminiEnvVar  = "GEMINI_API_KEY"
)

// GetKey retrieves the API key. If allowEnv is false, environment
// variables are ignored. The second return names the source.
func GetKey(allowEnv bool) (string, string) {
	key, err := keyring.Get(serviceName, geminiAccount)
	if err == nil && key != "" {
		return strings.TrimSpace(key), "Keychain"
	}
	if allowEnv {
		if key := strings.TrimSpace(os.Getenv(geminiEnvVar)); key != "" {
			return key, "Environment Variable"
		}
	}
	return "", ""
}

// SaveKey saves the key to the OS keychain.
func SaveKey(key string) error {
	return keyring.Set(serviceName, geminiAccount, strings.TrimSpace(key))
}

// DeleteKey removes the key from the OS keychain.
func DeleteKey() error {
	return keyring.Delete(serviceName, geminiAccount)
}

// GetStatus reports whether a key exists in the keychain.
func GetStatus() bool {
	key, err := keyring.Get(serviceName, geminiAccount)
	return err == nil && key != ""
}

// PromptForAPIKey securely prompts the user for their API key.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

// GetEnvKey retrieves the key from the environment only.
func GetEnvKey() (string, bool) {
	key := strings.TrimSpace(os.Getenv(geminiEnvVar))
	if key == "" {
		return "", false
	}
	return key, true
}
