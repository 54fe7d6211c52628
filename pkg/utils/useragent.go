package utils

import "math/rand/v2"

// userAgents are desktop Chrome strings rotated across browser sessions.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// UserAgent returns override when set, otherwise a random desktop user agent.
func UserAgent(override string) string {
	if override != "" {
		return override
	}
	return userAgents[rand.IntN(len(userAgents))]
}
