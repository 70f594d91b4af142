package utils

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var (
	invalidDeviceChars = regexp.MustCompile(`[^a-z0-9\-_]`)
	repeatedHyphens    = regexp.MustCompile(`-+`)
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

// SanitizeDeviceName lowercases a name, turns spaces into hyphens and drops
// everything that is not alphanumeric, a hyphen or an underscore.
func SanitizeDeviceName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	name = invalidDeviceChars.ReplaceAllString(name, "")
	name = repeatedHyphens.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if name == "" {
		name = "device"
	}
	return name
}

// DeviceName names this machine in custody metadata. It falls back to the
// username when the hostname is unavailable.
func DeviceName() string {
	hostname, err := GetHostname()
	if err != nil {
		username, userErr := GetUsername()
		if userErr != nil {
			return "device"
		}
		hostname = username
	}
	return SanitizeDeviceName(hostname)
}
