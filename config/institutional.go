package config

import (
	"regexp"
	"strings"
)

// ProgramAllowed reports whether program is in the configured allow-list.
// An empty allow-list rejects every program.
func (c *Config) ProgramAllowed(program string) bool {
	program = strings.TrimSpace(program)
	if program == "" {
		return false
	}
	for _, allowed := range c.Programs {
		if allowed == program {
			return true
		}
	}
	return false
}

// ValidInstitutionalEmail checks that email is the institutional address for id:
// an optional letter, optional digits, the id itself, then the institutional domain.
func (c *Config) ValidInstitutionalEmail(email, id string) bool {
	if id == "" || c.InstitutionalDomain == "" {
		return false
	}
	pattern := `^[a-zA-Z]?[0-9]*` + regexp.QuoteMeta(id) + `@` + regexp.QuoteMeta(c.InstitutionalDomain) + `$`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(email)
}
