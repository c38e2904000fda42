package audit

import (
	"strings"

	"github.com/mssola/useragent"
)

// DescribeClient reduces a User-Agent header to "browser version (os)", or
// "bot:name" for crawlers. Raw headers are not kept in audit records.
func DescribeClient(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot:" + name
	}
	desc := strings.TrimSpace(name + " " + version)
	if desc == "" {
		desc = "unknown"
	}
	if os := ua.OS(); os != "" {
		desc += " (" + os + ")"
	}
	if ua.Mobile() {
		desc += " mobile"
	}
	return desc
}
