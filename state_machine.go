package auth

// Operation names a controller intent.
type Operation string

const (
	OperationLogin         Operation = "login"
	OperationSignUp        Operation = "sign_up"
	OperationConfirmSignUp Operation = "confirm_sign_up"
	OperationResendCode    Operation = "resend_code"
	OperationLogout        Operation = "logout"
	OperationLookupUser    Operation = "lookup_user"
	OperationDeleteAccount Operation = "delete_account"
)

// phaseTransitions lists, per operation, the phases it may start from and the
// phase a successful run ends in. Failed runs never change the state.
var phaseTransitions = map[Operation]struct {
	from map[Phase]struct{}
	to   Phase
}{
	OperationLogin: {
		from: phaseSet(PhaseUnauthenticated, PhasePendingVerification, PhaseAuthenticated),
		to:   PhaseAuthenticated,
	},
	OperationSignUp: {
		from: phaseSet(PhaseUnauthenticated, PhasePendingVerification, PhaseAuthenticated),
		to:   PhasePendingVerification,
	},
	OperationConfirmSignUp: {
		from: phaseSet(PhasePendingVerification),
		to:   PhaseUnauthenticated,
	},
	OperationResendCode: {
		from: phaseSet(PhasePendingVerification),
		to:   PhasePendingVerification,
	},
	OperationLogout: {
		from: phaseSet(PhaseUnauthenticated, PhasePendingVerification, PhaseAuthenticated),
		to:   PhaseUnauthenticated,
	},
	OperationLookupUser: {
		from: phaseSet(PhaseAuthenticated),
		to:   PhaseAuthenticated,
	},
	OperationDeleteAccount: {
		from: phaseSet(PhaseAuthenticated),
		to:   PhaseUnauthenticated,
	},
}

func phaseSet(phases ...Phase) map[Phase]struct{} {
	out := make(map[Phase]struct{}, len(phases))
	for _, p := range phases {
		out[p] = struct{}{}
	}
	return out
}

// CanRun reports whether op may be issued while the session is in phase.
func CanRun(op Operation, phase Phase) bool {
	if phase == "" {
		phase = PhaseUnauthenticated
	}
	rule, ok := phaseTransitions[op]
	if !ok {
		return false
	}
	_, allowed := rule.from[phase]
	return allowed
}

// TargetPhase returns the phase a successful op ends in.
func TargetPhase(op Operation) (Phase, bool) {
	rule, ok := phaseTransitions[op]
	if !ok {
		return "", false
	}
	return rule.to, true
}
