package auth

// Messages holds the user-facing text placed in AuthOutcome.Message.
type Messages struct {
	LoginSuccess       string
	SignUpSuccess      string
	ConfirmSuccess     string
	ResendSuccess      string
	LogoutSuccess      string
	LookupSuccess      string
	DeleteSuccess      string
	NotAuthorized      string
	UserNotFound       string
	DuplicateUser      string
	InvalidCode        string
	MissingCredentials string
	InvalidSignUp      string
	MissingCode        string
	NothingPending     string
	NotSignedIn        string
	IncompleteTokens   string
	// UnknownPrefix is prepended to the provider's diagnostic text.
	UnknownPrefix string
}

// DefaultMessages returns the built-in English messages.
func DefaultMessages() Messages {
	return Messages{
		LoginSuccess:       "Login successful",
		SignUpSuccess:      "Sign-up successful. Please check your email for the verification code.",
		ConfirmSuccess:     "Account verification successful. You can now login.",
		ResendSuccess:      "Verification code resent successfully",
		LogoutSuccess:      "You have been logged out",
		LookupSuccess:      "User found",
		DeleteSuccess:      "Your account has been deleted",
		NotAuthorized:      "Incorrect username or password",
		UserNotFound:       "User does not exist",
		DuplicateUser:      "Username already exists",
		InvalidCode:        "Incorrect verification code",
		MissingCredentials: "Username and password are required",
		InvalidSignUp:      "A valid email address and a password are required",
		MissingCode:        "Verification code is required",
		NothingPending:     "There is no sign-up waiting for verification",
		NotSignedIn:        "You need to log in first",
		IncompleteTokens:   "The identity provider returned an incomplete token set",
		UnknownPrefix:      "An error occurred: ",
	}
}

// merge fills empty fields of m from defaults.
func (m Messages) merge(defaults Messages) Messages {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Messages{
		LoginSuccess:       pick(m.LoginSuccess, defaults.LoginSuccess),
		SignUpSuccess:      pick(m.SignUpSuccess, defaults.SignUpSuccess),
		ConfirmSuccess:     pick(m.ConfirmSuccess, defaults.ConfirmSuccess),
		ResendSuccess:      pick(m.ResendSuccess, defaults.ResendSuccess),
		LogoutSuccess:      pick(m.LogoutSuccess, defaults.LogoutSuccess),
		LookupSuccess:      pick(m.LookupSuccess, defaults.LookupSuccess),
		DeleteSuccess:      pick(m.DeleteSuccess, defaults.DeleteSuccess),
		NotAuthorized:      pick(m.NotAuthorized, defaults.NotAuthorized),
		UserNotFound:       pick(m.UserNotFound, defaults.UserNotFound),
		DuplicateUser:      pick(m.DuplicateUser, defaults.DuplicateUser),
		InvalidCode:        pick(m.InvalidCode, defaults.InvalidCode),
		MissingCredentials: pick(m.MissingCredentials, defaults.MissingCredentials),
		InvalidSignUp:      pick(m.InvalidSignUp, defaults.InvalidSignUp),
		MissingCode:        pick(m.MissingCode, defaults.MissingCode),
		NothingPending:     pick(m.NothingPending, defaults.NothingPending),
		NotSignedIn:        pick(m.NotSignedIn, defaults.NotSignedIn),
		IncompleteTokens:   pick(m.IncompleteTokens, defaults.IncompleteTokens),
		UnknownPrefix:      pick(m.UnknownPrefix, defaults.UnknownPrefix),
	}
}
