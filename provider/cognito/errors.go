package cognito

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	auth "github.com/goliatone/go-auth-frontend"
)

// classify wraps a Cognito client error in an *auth.ProviderError whose
// Reason is the matching auth sentinel, if any.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}

	perr := auth.NewProviderError(ProviderName, operation, reasonFor(err), err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		perr.Code = apiErr.ErrorCode()
		perr.Description = apiErr.ErrorMessage()
	}

	return perr
}

func reasonFor(err error) error {
	var (
		notAuthorized *types.NotAuthorizedException
		notFound      *types.UserNotFoundException
		exists        *types.UsernameExistsException
		mismatch      *types.CodeMismatchException
	)

	switch {
	case errors.As(err, &notAuthorized):
		return auth.ErrNotAuthorized
	case errors.As(err, &notFound):
		return auth.ErrUserNotFound
	case errors.As(err, &exists):
		return auth.ErrUsernameExists
	case errors.As(err, &mismatch):
		return auth.ErrCodeMismatch
	}
	return nil
}
