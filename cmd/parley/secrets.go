package main

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"parley/pkg/config"
)

// loadAPIKey resolves the API key: from the encrypted secrets file when one
// exists (prompting for its password), falling back to the environment.
func loadAPIKey(path string) (string, error) {
	secrets := config.NewSecrets()
	if config.SecretsExist(path) {
		fmt.Fprint(os.Stderr, "Secrets password: ")
		password, err := term.ReadPassword(syscall.Stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		secrets, err = config.OpenSecrets(path, string(password))
		if err != nil {
			return "", err
		}
	}
	key, err := secrets.Get("ANTHROPIC_API_KEY")
	if err != nil {
		return "", err
	}
	return key, nil
}

// saveAPIKey prompts for an API key and encrypts it into the secrets file.
// An existing file is re-opened first so other entries survive.
func saveAPIKey(path string) error {
	var (
		secrets  *config.Secrets
		password string
		err      error
	)
	if config.SecretsExist(path) {
		fmt.Fprint(os.Stderr, "Secrets password: ")
		pw, readErr := term.ReadPassword(syscall.Stdin)
		fmt.Fprintln(os.Stderr)
		if readErr != nil {
			return fmt.Errorf("failed to read password: %w", readErr)
		}
		password = string(pw)
		secrets, err = config.OpenSecrets(path, password)
		if err != nil {
			return err
		}
	} else {
		secrets = config.NewSecrets()
		password, err = promptForPassword()
		if err != nil {
			return err
		}
	}

	fmt.Fprint(os.Stderr, "ANTHROPIC_API_KEY: ")
	key, err := term.ReadPassword(syscall.Stdin)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("no key entered")
	}

	secrets.Set("ANTHROPIC_API_KEY", string(key))
	if err := secrets.Save(path, password); err != nil {
		return err
	}
	fmt.Printf("✅ Credentials saved to %s (file permissions: 0600)\n", path)
	return nil
}

// promptForPassword prompts for a new password with confirmation.
func promptForPassword() (string, error) {
	maxAttempts := 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(os.Stderr, "Choose a password for the secrets file: ")
		password1, err := term.ReadPassword(syscall.Stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Fprint(os.Stderr, "Confirm password: ")
		password2, err := term.ReadPassword(syscall.Stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if !bytes.Equal(password1, password2) {
			if attempt < maxAttempts {
				fmt.Fprintln(os.Stderr, "❌ Passwords do not match. Please try again.")
				continue
			}
			return "", fmt.Errorf("passwords do not match after %d attempts", maxAttempts)
		}
		if len(password1) == 0 {
			return "", fmt.Errorf("password must not be empty")
		}
		return string(password1), nil
	}
	return "", fmt.Errorf("no password entered")
}
