package ratelimit

import "strings"

// Key builds a limiter key from an endpoint class and the client IP.
// Counters are isolated per class, so exhausting the login budget never
// blocks answers from the same address.
func Key(class, ip string) string {
	class = strings.TrimSpace(class)
	ip = strings.TrimSpace(ip)
	if class == "" || ip == "" {
		return ""
	}
	return class + ":" + ip
}
