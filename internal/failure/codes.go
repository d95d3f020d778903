// Package failure normalizes wallet, contract and local validation failures
// into a fixed set of codes that the presentation layer can render.
package failure

// Code is a machine-readable failure code.
type Code string

const (
	// CodeUnknown represents an error that was never normalized.
	CodeUnknown Code = "UNKNOWN"

	// Wallet errors
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeUserRejected        Code = "USER_REJECTED"
	CodeRequestFailed       Code = "REQUEST_FAILED"

	// Contract errors
	CodeSignerUnavailable Code = "SIGNER_UNAVAILABLE"
	CodeFetchFailed       Code = "FETCH_FAILED"
	CodeSubmitFailed      Code = "SUBMIT_FAILED"

	// Local validation
	CodePreconditionFailed Code = "PRECONDITION_FAILED"
)

// Recoverable reports whether the user can clear the failure by re-issuing a
// command. Only a missing provider needs action outside the client.
func (c Code) Recoverable() bool {
	return c != CodeProviderUnavailable
}
