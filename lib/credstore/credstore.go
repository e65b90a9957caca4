package credstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "atdkit"
const account = "portal"

var (
	ErrNotFound    = errors.New("no portal credentials stored, run `atd login` first")
	ErrUnavailable = errors.New("OS keyring is not available")
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Get retrieves the stored portal credentials from the OS keyring.
func Get() (Credentials, error) {
	payload, err := keyring.Get(service, account)
	if err != nil {
		if err == keyring.ErrNotFound {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var creds Credentials
	err = json.Unmarshal([]byte(payload), &creds)
	if err != nil {
		return Credentials{}, fmt.Errorf("stored credentials are corrupt: %w", err)
	}
	return creds, nil
}

func Set(creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return errors.New("both email and password are required")
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	err = keyring.Set(service, account, string(payload))
	if err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func Delete() error {
	err := keyring.Delete(service, account)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// IsAvailable is a best-effort probe of the OS keyring.
func IsAvailable() bool {
	_, err := keyring.Get(service, "test-availability")
	return err == nil || err == keyring.ErrNotFound
}
