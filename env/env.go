package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
)

// GetIntEnv gets an integer value from the environment and parses it
func GetIntEnv(name string, varName string) (int, error) {
	value, err := GetEnv(name, varName)
	if err != nil {
		return 0, err
	}

	asInt, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(value, name, varName, err)
	}

	return asInt, nil
}

// GetFloatEnv gets a floating point value from the environment and parses it
func GetFloatEnv(name string, varName string) (float64, error) {
	value, err := GetEnv(name, varName)
	if err != nil {
		return 0, err
	}

	asFloat, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, invalid(value, name, varName, err)
	}

	return asFloat, nil
}

// GetDurationEnv gets a duration value from the environment and parses it
func GetDurationEnv(name string, varName string) (time.Duration, error) {
	value, err := GetEnv(name, varName)
	if err != nil {
		return 0, err
	}

	asDuration, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(value, name, varName, err)
	}

	return asDuration, nil
}

// GetBytesEnv gets a byte size value (such as "512KB" or "1MB")
// from the environment and parses it
func GetBytesEnv(name string, varName string) (datasize.ByteSize, error) {
	value, err := GetEnv(name, varName)
	if err != nil {
		return 0, err
	}

	var size datasize.ByteSize
	err = size.UnmarshalText([]byte(strings.TrimSpace(value)))
	if err != nil {
		return 0, invalid(value, name, varName, err)
	}

	return size, nil
}

// GetBoolEnv gets a boolean flag from the environment.
// Anything other than "", "0" and "false" counts as set
func GetBoolEnv(name string, varName string) (bool, error) {
	value, err := GetEnv(name, varName)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false":
		return false, nil
	default:
		return true, nil
	}
}

// GetListEnv gets a '|'-separated list from the environment,
// dropping empty entries
func GetListEnv(name string, varName string) ([]string, error) {
	value, err := GetEnv(name, varName)
	if err != nil {
		return nil, err
	}

	return splitList(value), nil
}

// GetEnv gets a string value from the environment and parses it
func GetEnv(name string, varName string) (string, error) {
	value, exists := os.LookupEnv(varName)
	if !exists {
		return "", fmt.Errorf("No environment variable found for the %s ('%s')", name, varName)
	}

	return value, nil
}

// LookupEnv gets a string value from the environment,
// falling back to the default if it is unset
func LookupEnv(varName string, fallback string) string {
	if value, ok := os.LookupEnv(varName); ok {
		return value
	}
	return fallback
}

// LookupIntEnv is GetIntEnv with a default for unset variables
func LookupIntEnv(name string, varName string, fallback int) (int, error) {
	if _, ok := os.LookupEnv(varName); !ok {
		return fallback, nil
	}
	return GetIntEnv(name, varName)
}

// LookupFloatEnv is GetFloatEnv with a default for unset variables
func LookupFloatEnv(name string, varName string, fallback float64) (float64, error) {
	if _, ok := os.LookupEnv(varName); !ok {
		return fallback, nil
	}
	return GetFloatEnv(name, varName)
}

// LookupDurationEnv is GetDurationEnv with a default for unset variables
func LookupDurationEnv(name string, varName string, fallback time.Duration) (time.Duration, error) {
	if _, ok := os.LookupEnv(varName); !ok {
		return fallback, nil
	}
	return GetDurationEnv(name, varName)
}

// LookupBytesEnv is GetBytesEnv with a default for unset variables
func LookupBytesEnv(name string, varName string, fallback datasize.ByteSize) (datasize.ByteSize, error) {
	if _, ok := os.LookupEnv(varName); !ok {
		return fallback, nil
	}
	return GetBytesEnv(name, varName)
}

// LookupBoolEnv is GetBoolEnv with a default for unset variables
func LookupBoolEnv(name string, varName string, fallback bool) bool {
	if _, ok := os.LookupEnv(varName); !ok {
		return fallback
	}
	value, _ := GetBoolEnv(name, varName)
	return value
}

// LookupListEnv is GetListEnv with a default for unset variables
func LookupListEnv(name string, varName string, fallback []string) []string {
	if _, ok := os.LookupEnv(varName); !ok {
		return fallback
	}
	value, _ := GetListEnv(name, varName)
	return value
}

func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, "|") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func invalid(value string, name string, varName string, err error) error {
	return fmt.Errorf("Environment variable value '%s' invalid for the %s ('%s'):\n%s",
		value, name, varName, err)
}
