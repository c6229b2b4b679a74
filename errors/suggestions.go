package errors

// Suggestions contains default fix suggestions for each error code.
// Suggestions are operator-facing: the console driver prints them, the
// session controller never forwards them to the remote party.
var Suggestions = map[string]string{
	ErrCodeUserNotFound: "Verify the gateway username matches the configured OneLogin user attribute. " +
		"A different attribute can be set with user_attribute in the [onelogin] section.",
	ErrCodeAmbiguousUser: "The configured user attribute is not unique in this OneLogin account. " +
		"Pick an attribute with unique values (e.g. username or email).",
	ErrCodeFactorNotFound: "The user has no default MFA device enrolled in OneLogin. " +
		"Enroll a device, mark one as default, or select one explicitly with the !select command.",
	ErrCodeDirectoryError: "The OneLogin API call failed or returned an unexpected response. " +
		"Check API connectivity and the api_region setting.",
	ErrCodePushTimeout: "The push notification was not answered in time. " +
		"Increase push_poll_timeout or ask the user to respond faster.",
	ErrCodeConfigurationError: "The OneLogin API client could not be set up. " +
		"Check client_id and client_secret in the [onelogin] section.",
}

// GetSuggestion returns the default suggestion for an error code.
// Returns empty string if no suggestion is defined.
func GetSuggestion(code string) string {
	return Suggestions[code]
}
