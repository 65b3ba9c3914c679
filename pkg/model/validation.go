package model

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Supported rendering backends
const (
	BackendChromium   = "chromium"
	BackendPlaywright = "playwright"
)

// ValidateRendererConfig checks the renderer settings before a browser is launched.
func ValidateRendererConfig(cfg RendererConfig) error {
	switch cfg.Backend {
	case BackendChromium, BackendPlaywright:
	default:
		return fmt.Errorf("unknown renderer backend '%s' (expected %s or %s)", cfg.Backend, BackendChromium, BackendPlaywright)
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative: %s", cfg.SettleDelay)
	}
	return nil
}

// ValidateRecipientDomains checks every recipient against the allowed domain list.
// An empty list allows all domains.
func ValidateRecipientDomains(recipients []string, allowedDomains []string) error {
	for _, email := range recipients {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}

		domain := extractDomain(email)
		if domain == "" {
			return fmt.Errorf("invalid email address format: %s", email)
		}

		if len(allowedDomains) > 0 && !isDomainAllowed(domain, allowedDomains) {
			return fmt.Errorf("email domain '%s' is not allowed (email: %s). Allowed domains: %v", domain, email, allowedDomains)
		}
	}

	return nil
}

func extractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// isDomainAllowed supports exact matches and wildcard patterns (e.g., "*.example.com")
func isDomainAllowed(domain string, allowedDomains []string) bool {
	domain = strings.ToLower(domain)

	for _, allowed := range allowedDomains {
		allowed = strings.ToLower(strings.TrimSpace(allowed))

		if domain == allowed {
			return true
		}

		if strings.HasPrefix(allowed, "*.") {
			baseDomain := allowed[2:]
			if domain == baseDomain || strings.HasSuffix(domain, "."+baseDomain) {
				return true
			}
		}
	}

	return false
}

// ValidateCronExpression validates the expression used by the schedule command.
func ValidateCronExpression(cronExpr string) error {
	if strings.TrimSpace(cronExpr) == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}

	// Same parser the scheduler uses: five fields or a descriptor such as @daily or @every 5m
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression '%s': %v", cronExpr, err)
	}

	return nil
}
