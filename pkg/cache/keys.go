package cache

// Key prefixes. All keys follow the pattern "furia:<name>".
const (
	Namespace   = "furia:"
	TokenSuffix = "token"
)

// TokenKey returns the fixed key the bearer token is stored under.
// A non-empty profile scopes the key so several local profiles can share
// one Redis instance.
//
// Example: "furia:token", "furia:work:token"
func TokenKey(profile string) string {
	if profile == "" {
		return Namespace + TokenSuffix
	}
	return Namespace + profile + ":" + TokenSuffix
}
