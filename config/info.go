package config

import (
	"fmt"
	"os"
	"regexp"
)

// InfoFile carries the relay credentials an operator keeps outside the
// environment, in a free-form key: value text file.
type InfoFile struct {
	WebhookURL string
	Password   string
	KISNumber  string
}

var (
	infoWebhookRe  = regexp.MustCompile(`(?im)^\s*webhook_url\s*[:=]\s*(\S+)`)
	infoPasswordRe = regexp.MustCompile(`(?im)^\s*password\s*[:=]\s*(\S+)`)
	infoKISRe      = regexp.MustCompile(`(?im)^\s*kis_number\s*[:=]\s*(\S+)`)
)

// LoadInfoFile reads and parses the info sidecar. Missing keys stay empty;
// a missing file is an error.
func LoadInfoFile(path string) (*InfoFile, error) {
	if path == "" {
		return nil, fmt.Errorf("LoadInfoFile: no info path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadInfoFile: %w", err)
	}

	info := &InfoFile{}
	if m := infoWebhookRe.FindSubmatch(data); m != nil {
		info.WebhookURL = string(m[1])
	}
	if m := infoPasswordRe.FindSubmatch(data); m != nil {
		info.Password = string(m[1])
	}
	if m := infoKISRe.FindSubmatch(data); m != nil {
		info.KISNumber = string(m[1])
	}
	return info, nil
}
