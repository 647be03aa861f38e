package error_classifier

import "strings"

type Category string

const (
	CategoryValidation    Category = "ValidationError"
	CategoryAuth          Category = "AuthError"
	CategoryPermission    Category = "PermissionError"
	CategoryConnectivity  Category = "ConnectivityError"
	CategoryTimeout       Category = "TimeoutError"
	CategoryRateLimit     Category = "RateLimitError"
	CategoryEmptyResponse Category = "EmptyResponseError"
	CategoryUnknown       Category = "UnknownError"
)

type Classification struct {
	Category Category
	Message  string
}

const (
	AuthMessage = "Authentication failed. Your Discord session token is invalid or expired.\n\n" +
		"To get a new token:\n" +
		"1. Open Discord in your browser (not the app)\n" +
		"2. Press F12 to open Developer Tools\n" +
		"3. Go to Network tab, filter by 'api'\n" +
		"4. Click any request and find the 'Authorization' header\n" +
		"5. Copy that value to your preferences"
	PermissionMessage = "Access denied. Make sure:\n" +
		"• You have access to the specified Discord server\n" +
		"• The Midjourney bot is in that server\n" +
		"• You have permission to use the channel"
	ConnectivityMessage = "Could not connect to Discord. Please check:\n" +
		"• Your internet connection\n" +
		"• Discord is not blocked by firewall\n" +
		"• Try again in a few moments"
	TimeoutMessage       = "Connection timed out. Discord may be slow or your session token may have expired."
	RateLimitMessage     = "Rate limited by Discord. Please wait a few minutes before trying again."
	EmptyResponseMessage = "No response received from Midjourney. The bot may be overloaded or your session may have expired."
)

type rule struct {
	category Category
	needles  []string
	message  string
}

// Checked in order, first match wins.
var rules = []rule{
	{category: CategoryAuth, needles: []string{"401", "Unauthorized", "invalid session"}, message: AuthMessage},
	{category: CategoryPermission, needles: []string{"403", "Forbidden"}, message: PermissionMessage},
	{category: CategoryConnectivity, needles: []string{"connect", "WebSocket", "ECONNREFUSED"}, message: ConnectivityMessage},
	{category: CategoryTimeout, needles: []string{"timeout", "ETIMEDOUT"}, message: TimeoutMessage},
	{category: CategoryRateLimit, needles: []string{"rate limit", "429"}, message: RateLimitMessage},
}

type classifierImpl struct{}

func New() Classifier {
	return &classifierImpl{}
}

func (c *classifierImpl) Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryUnknown}
	}

	return c.ClassifyMessage(err.Error())
}

func (c *classifierImpl) ClassifyMessage(raw string) Classification {
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(raw, needle) {
				return Classification{Category: r.category, Message: r.message}
			}
		}
	}

	return Classification{Category: CategoryUnknown, Message: raw}
}
