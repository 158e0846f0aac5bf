package transfer

import "regexp"

// idPatterns are tried in order against a URL or bare ID.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`),
}

// ResolveID extracts a file ID from a Drive URL. Input that matches no
// pattern is returned verbatim; the ID's shape is not validated.
func ResolveID(input string) string {
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1]
		}
	}

	return input
}
