package auth

// AuthOutcome is the normalized, display-ready result of a controller operation.
type AuthOutcome struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(message string) AuthOutcome {
	return AuthOutcome{Success: true, Message: message}
}

// Failed builds a failed outcome. An empty kind is recorded as ErrorKindUnknown.
func Failed(kind ErrorKind, message string) AuthOutcome {
	if kind == ErrorKindNone {
		kind = ErrorKindUnknown
	}
	return AuthOutcome{Success: false, Message: message, ErrorKind: kind}
}

// Is reports whether the outcome failed with the given kind.
func (o AuthOutcome) Is(kind ErrorKind) bool {
	return !o.Success && o.ErrorKind == kind
}
