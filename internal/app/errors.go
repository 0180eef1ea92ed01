package app

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoActiveTab      = errors.New("no active tab")
	ErrRestrictedPage   = errors.New("page cannot be scanned")
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownBackend   = errors.New("unknown page backend")
	ErrOrchestratorDown = errors.New("orchestrator is shut down")
)

var restrictedSchemes = []string{
	"chrome://", "chrome-extension://", "about:", "edge://", "view-source:",
}

// CheckURL rejects empty URLs and browser-internal pages.
func CheckURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrNoActiveTab
	}
	lower := strings.ToLower(url)
	for _, scheme := range restrictedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return fmt.Errorf("%w: %s", ErrRestrictedPage, url)
		}
	}
	return nil
}

// IsUnscannable reports whether err belongs to the no-tab class the scan
// entry point may return.
func IsUnscannable(err error) bool {
	return errors.Is(err, ErrNoActiveTab) || errors.Is(err, ErrRestrictedPage)
}
