package env

import "os"

// Get reads key from the process environment. Unset and blank both fall
// back to def, since an exported empty variable is never a useful value here.
func Get(key, def string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return def
}
