package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownSetting = errors.New("unknown setting")

// Settings is the user-settings bag.
type Settings struct {
	AutoScan          bool `json:"autoScan"`
	ShowNotifications bool `json:"showNotifications"`
	// ScanInterval is the fine monitoring interval in milliseconds.
	ScanInterval        int     `json:"scanInterval"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoScan:            true,
		ShowNotifications:   true,
		ScanInterval:        5000,
		ConfidenceThreshold: 0.6,
	}
}

// Interval returns ScanInterval as a duration, or 0 when unset.
func (s Settings) Interval() time.Duration {
	if s.ScanInterval <= 0 {
		return 0
	}
	return time.Duration(s.ScanInterval) * time.Millisecond
}

// SettingKeys lists the keys accepted by Set, in display order.
var SettingKeys = []string{"autoScan", "showNotifications", "scanInterval", "confidenceThreshold"}

// Set parses value into the field named key.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "autoScan":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("autoScan: %w", err)
		}
		s.AutoScan = b
	case "showNotifications":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("showNotifications: %w", err)
		}
		s.ShowNotifications = b
	case "scanInterval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("scanInterval: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("scanInterval must be positive, got %d", n)
		}
		s.ScanInterval = n
	case "confidenceThreshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("confidenceThreshold: %w", err)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("confidenceThreshold must be within [0,1], got %v", f)
		}
		s.ConfidenceThreshold = f
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return nil
}

func (s Settings) values() map[string]string {
	return map[string]string{
		"autoScan":            strconv.FormatBool(s.AutoScan),
		"showNotifications":   strconv.FormatBool(s.ShowNotifications),
		"scanInterval":        strconv.Itoa(s.ScanInterval),
		"confidenceThreshold": strconv.FormatFloat(s.ConfidenceThreshold, 'f', -1, 64),
	}
}
