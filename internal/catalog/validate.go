package catalog

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	hostPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	userPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateHost accepts an IPv4 literal or a plain hostname.
func ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return nil
	}
	if len(host) > 255 {
		return fmt.Errorf("hostname too long")
	}
	if !hostPattern.MatchString(host) {
		return fmt.Errorf("invalid host format: %q", host)
	}
	return nil
}

// ParsePort parses and range-checks a port number.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("port must be a number")
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func ValidateUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(user) > 32 {
		return fmt.Errorf("username too long")
	}
	if !userPattern.MatchString(user) {
		return fmt.Errorf("invalid username format: %q", user)
	}
	return nil
}
