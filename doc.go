// Package auth implements the session state machine of a user-facing
// authentication front end that delegates credentials, registration, and email
// confirmation to a remote identity provider.
//
// Session lifecycle:
//   - SessionState is an explicit value with three phases: unauthenticated,
//     pending_verification, and authenticated. Tokens are only present while
//     authenticated. After a successful confirmation the session goes back to
//     unauthenticated, keeps the username and sets Verified so the login form
//     can be pre-filled.
//   - AuthController takes an intent plus a SessionState snapshot, calls the
//     IdentityProvider, and returns the next SessionState together with an
//     AuthOutcome. It never renders anything and never keeps per-session data.
//   - Flow reads the snapshot from a SessionStore, runs the controller, and
//     writes the result back while holding a per-session lock.
//
// Errors:
//   - Adapters report failures as *ProviderError with one of ErrNotAuthorized,
//     ErrUserNotFound, ErrUsernameExists or ErrCodeMismatch as Reason.
//     ClassifyError maps any error to an ErrorKind; unmapped errors, timeouts
//     included, are ErrorKindUnknown and the outcome message carries the
//     provider diagnostic.
//
// Activity sinks:
//   - Every controller operation emits an ActivityEvent. Sinks run best-effort
//     (errors are logged) so metrics or audit pipelines never block a login.
package auth
