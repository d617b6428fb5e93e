package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"unicode/utf8"
)

// maxRequestBodySize bounds JSON request bodies.
const maxRequestBodySize = 64 * 1024

// maxNameLen is the maximum length for prompt names and descriptions.
const maxNameLen = 200

// maxTextLen is the maximum length of text sent to synthesis.
const maxTextLen = 5000

// languageRe validates language tags such as "en-us" or "de-de".
var languageRe = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// voiceRe validates speech voice names such as "en-US-JennyNeural".
var voiceRe = regexp.MustCompile(`^[a-zA-Z]{2,3}-[a-zA-Z0-9]{2,8}(-[a-zA-Z0-9]+)+$`)

// readJSON decodes a single JSON object from the request body into dst.
// Returns an error message if invalid, empty string if OK.
func readJSON(r *http.Request, dst any) string {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return "invalid request body"
	}

	if dec.More() {
		return "request body must contain a single json object"
	}

	return ""
}

// validateStringLen checks that a string does not exceed maxLen characters.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateLanguage checks an optional language tag.
func validateLanguage(value string) string {
	if value == "" || languageRe.MatchString(value) {
		return ""
	}
	return "language is not a valid language tag"
}

// validateVoice checks a speech voice name.
func validateVoice(value string) string {
	if voiceRe.MatchString(value) {
		return ""
	}
	return "voice is not a valid voice name"
}
