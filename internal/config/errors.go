package config

import "fmt"

// InvalidConfigError represents a setting the server cannot run with
type InvalidConfigError struct {
	Path    string
	Message string
	Hint    string
}

func (e *InvalidConfigError) Error() string {
	msg := fmt.Sprintf("invalid config: %s\n", e.Path)
	if e.Message != "" {
		msg += e.Message + "\n"
	}
	if e.Hint != "" {
		msg += "Hint: " + e.Hint
	}
	return msg
}
