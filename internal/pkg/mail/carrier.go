package mail

import "strings"

// carrierDomains are Japanese mobile carrier mail domains. Their gateways
// filter mail from generic SMTP relays more aggressively.
var carrierDomains = []string{
	"docomo.ne.jp",
	"ezweb.ne.jp",
	"softbank.ne.jp",
	"au.com",
}

// IsCarrier reports whether addr belongs to a carrier domain or a subdomain of one.
func IsCarrier(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	domain = strings.TrimSuffix(domain, ".")
	for _, d := range carrierDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
