package domain

import "strings"

// ValidHostname reports whether a hostname is syntactically acceptable for
// provisioning: dotted, 4-253 chars, labels of 1-63 chars, no leading or
// trailing hyphen.
func ValidHostname(hostname string) bool {
	if len(hostname) < 4 || len(hostname) > 253 {
		return false
	}

	if !strings.Contains(hostname, ".") {
		return false
	}

	for _, label := range strings.Split(hostname, ".") {
		if !validLabel(label) {
			return false
		}
	}

	return true
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}

	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}

	for _, c := range label {
		if !validHostnameChar(c) {
			return false
		}
	}

	return true
}

func validHostnameChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-'
}
