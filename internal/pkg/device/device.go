package device

import "regexp"

var mobileUA = regexp.MustCompile(`(?i)android|iphone|ipad|mobile`)

// IsMobile reports whether a User-Agent string looks like a phone or tablet
// that can open the app's deep link.
func IsMobile(userAgent string) bool {
	return mobileUA.MatchString(userAgent)
}
