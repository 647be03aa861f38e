package preference_validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"midjourney_bot/entities"
)

const minSessionTokenLength = 50

// Discord snowflakes rendered as decimal.
var snowflakeRegex = regexp.MustCompile(`^\d{17,19}$`)

type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks every field of the bundle independently and collects all
// errors instead of stopping at the first one.
func Validate(prefs entities.Preferences) Result {
	errs := make([]string, 0)

	sessionToken := strings.TrimSpace(prefs.SessionToken)
	if sessionToken == "" {
		errs = append(errs, "Discord session token is missing")
	} else if utf8.RuneCountInString(sessionToken) < minSessionTokenLength {
		errs = append(errs, "Discord session token appears too short - make sure you copied the full token")
	}

	errs = appendSnowflakeErrors(errs, "Server ID", prefs.ServerID)
	errs = appendSnowflakeErrors(errs, "Channel ID", prefs.ChannelID)

	return Result{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

func appendSnowflakeErrors(errs []string, name, value string) []string {
	value = strings.TrimSpace(value)

	if value == "" {
		return append(errs, name+" is missing")
	}

	if !snowflakeRegex.MatchString(value) {
		return append(errs, name+" should be a 17-19 digit number")
	}

	return errs
}
