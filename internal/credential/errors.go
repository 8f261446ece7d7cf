package credential

import "fmt"

// ConfigError reports a missing or malformed master key.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("credential configuration: %s", e.Reason)
}

// DecryptError reports a stored credential that cannot be opened with the
// current master key.
type DecryptError struct {
	Err error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("decrypting credential: %v", e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}
