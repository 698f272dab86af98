package mailer

import (
	"strings"

	"github.com/shineum/mailer-lite/internal/delivery"
	"github.com/shineum/mailer-lite/internal/email"
)

// DomainFilter accepts messages with at least one recipient in domains.
// Matching ignores case. No domains means no filter.
func DomainFilter(domains []string) delivery.Filter {
	if len(domains) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(domains))
	for _, d := range domains {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))] = true
	}

	return func(msg *email.Message) bool {
		for _, addr := range msg.RecipientAddresses() {
			_, domain, ok := strings.Cut(addr, "@")
			if ok && allowed[strings.ToLower(domain)] {
				return true
			}
		}
		return false
	}
}
