package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" -> "jo***@example.com"
// Short local parts (<=2 chars) are fully masked: "ab@example.com" -> "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactKey masks a license key for safe logging, keeping only the last
// segment so a specific key can still be matched against the pool sheet.
// "AAAA-BBBB-CCCC-DDDD" -> "****-DDDD"
func RedactKey(key string) string {
	if i := strings.LastIndex(key, "-"); i >= 0 && i < len(key)-1 {
		return "****-" + key[i+1:]
	}
	if len(key) > 4 {
		return "****" + key[len(key)-4:]
	}
	return "****"
}
