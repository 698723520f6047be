package cognito

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	auth "github.com/goliatone/go-auth-frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cip.InitiateAuthOutput)
	return out, args.Error(1)
}

func (m *MockClient) AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, _ ...func(*cip.Options)) (*cip.AdminGetUserOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cip.AdminGetUserOutput)
	return out, args.Error(1)
}

func (m *MockClient) AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, _ ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cip.AdminDeleteUserOutput)
	return out, args.Error(1)
}

func (m *MockClient) SignUp(ctx context.Context, params *cip.SignUpInput, _ ...func(*cip.Options)) (*cip.SignUpOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cip.SignUpOutput)
	return out, args.Error(1)
}

func (m *MockClient) ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, _ ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cip.ConfirmSignUpOutput)
	return out, args.Error(1)
}

func (m *MockClient) ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, _ ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cip.ResendConfirmationCodeOutput)
	return out, args.Error(1)
}

func newProvider(t *testing.T, secret string) (*IdentityProvider, *MockClient) {
	t.Helper()
	client := &MockClient{}
	p, err := NewIdentityProvider(context.Background(), Config{
		UserPoolID:   "us-east-1_pool",
		ClientID:     "client-id",
		ClientSecret: secret,
		Timeout:      time.Second,
		Client:       client,
	})
	require.NoError(t, err)
	return p, client
}

func TestAuthenticateReturnsTokens(t *testing.T) {
	p, client := newProvider(t, "")

	client.On("InitiateAuth", mock.Anything, mock.MatchedBy(func(in *cip.InitiateAuthInput) bool {
		_, hasHash := in.AuthParameters["SECRET_HASH"]
		return in.AuthFlow == types.AuthFlowTypeUserPasswordAuth &&
			aws.ToString(in.ClientId) == "client-id" &&
			in.AuthParameters["USERNAME"] == "a@b.com" &&
			in.AuthParameters["PASSWORD"] == "secret" &&
			!hasHash
	})).Return(&cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{
			AccessToken:  aws.String("A"),
			IdToken:      aws.String("I"),
			RefreshToken: aws.String("R"),
		},
	}, nil).Once()

	result, err := p.Authenticate(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, auth.AuthResult{AccessToken: "A", IDToken: "I", RefreshToken: "R"}, result)
	client.AssertExpectations(t)
}

func TestAuthenticateSendsSecretHash(t *testing.T) {
	p, client := newProvider(t, "s3cr3t")
	expected := SecretHash("s3cr3t", "a@b.com", "client-id")

	client.On("InitiateAuth", mock.Anything, mock.MatchedBy(func(in *cip.InitiateAuthInput) bool {
		return in.AuthParameters["SECRET_HASH"] == expected
	})).Return(&cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{
			AccessToken: aws.String("A"), IdToken: aws.String("I"), RefreshToken: aws.String("R"),
		},
	}, nil).Once()

	_, err := p.Authenticate(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestAuthenticateReportsChallenge(t *testing.T) {
	p, client := newProvider(t, "")
	client.On("InitiateAuth", mock.Anything, mock.Anything).Return(&cip.InitiateAuthOutput{
		ChallengeName: types.ChallengeNameTypeNewPasswordRequired,
	}, nil).Once()

	_, err := p.Authenticate(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.Equal(t, auth.ErrorKindUnknown, auth.ClassifyError(err))
	assert.Contains(t, err.Error(), "NEW_PASSWORD_REQUIRED")
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind auth.ErrorKind
		code string
	}{
		{
			name: "not authorized",
			err:  &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")},
			kind: auth.ErrorKindNotAuthorized,
			code: "NotAuthorizedException",
		},
		{
			name: "user not found",
			err:  &types.UserNotFoundException{Message: aws.String("User does not exist.")},
			kind: auth.ErrorKindUserNotFound,
			code: "UserNotFoundException",
		},
		{
			name: "username exists",
			err:  &types.UsernameExistsException{Message: aws.String("User already exists")},
			kind: auth.ErrorKindDuplicateUser,
			code: "UsernameExistsException",
		},
		{
			name: "code mismatch",
			err:  &types.CodeMismatchException{Message: aws.String("Invalid verification code provided, please try again.")},
			kind: auth.ErrorKindInvalidCode,
			code: "CodeMismatchException",
		},
		{
			name: "other api error",
			err:  &types.InvalidPasswordException{Message: aws.String("Password did not conform with policy")},
			kind: auth.ErrorKindUnknown,
			code: "InvalidPasswordException",
		},
		{
			name: "transport error",
			err:  errors.New("dial tcp: i/o timeout"),
			kind: auth.ErrorKindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("SignUp", tt.err)
			assert.Equal(t, tt.kind, auth.ClassifyError(err))
			assert.ErrorIs(t, err, tt.err)

			var perr *auth.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, ProviderName, perr.Provider)
			assert.Equal(t, tt.code, perr.Code)
		})
	}
}

func TestLookupUserMapsAttributes(t *testing.T) {
	p, client := newProvider(t, "")
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	client.On("AdminGetUser", mock.Anything, mock.MatchedBy(func(in *cip.AdminGetUserInput) bool {
		return aws.ToString(in.UserPoolId) == "us-east-1_pool" && aws.ToString(in.Username) == "a@b.com"
	})).Return(&cip.AdminGetUserOutput{
		Username: aws.String("a@b.com"),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String("a@b.com")},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
		Enabled:        true,
		UserStatus:     types.UserStatusTypeConfirmed,
		UserCreateDate: &created,
	}, nil).Once()

	record, err := p.LookupUser(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", record.Email())
	assert.Equal(t, "true", record.Attributes["email_verified"])
	assert.True(t, record.Enabled)
	assert.Equal(t, "CONFIRMED", record.Status)
	assert.Equal(t, &created, record.CreatedAt)
}

func TestRegisterSendsAttributes(t *testing.T) {
	p, client := newProvider(t, "")

	client.On("SignUp", mock.Anything, mock.MatchedBy(func(in *cip.SignUpInput) bool {
		return aws.ToString(in.Username) == "a@b.com" &&
			len(in.UserAttributes) == 1 &&
			aws.ToString(in.UserAttributes[0].Name) == "email" &&
			in.SecretHash == nil
	})).Return(&cip.SignUpOutput{}, nil).Once()

	require.NoError(t, p.Register(context.Background(), "a@b.com", "pw", auth.Attributes{"email": "a@b.com"}))
	client.AssertExpectations(t)
}

func TestConfirmResendDelete(t *testing.T) {
	p, client := newProvider(t, "")
	ctx := context.Background()

	client.On("ConfirmSignUp", mock.Anything, mock.MatchedBy(func(in *cip.ConfirmSignUpInput) bool {
		return aws.ToString(in.ConfirmationCode) == "123456"
	})).Return((*cip.ConfirmSignUpOutput)(nil), &types.CodeMismatchException{Message: aws.String("bad")}).Once()
	client.On("ResendConfirmationCode", mock.Anything, mock.Anything).Return(&cip.ResendConfirmationCodeOutput{}, nil).Once()
	client.On("AdminDeleteUser", mock.Anything, mock.Anything).Return(&cip.AdminDeleteUserOutput{}, nil).Once()

	err := p.ConfirmRegistration(ctx, "a@b.com", "123456")
	assert.Equal(t, auth.ErrorKindInvalidCode, auth.ClassifyError(err))
	assert.NoError(t, p.ResendCode(ctx, "a@b.com"))
	assert.NoError(t, p.DeleteUser(ctx, "a@b.com"))
	client.AssertExpectations(t)
}

func TestCallsCarryDeadline(t *testing.T) {
	p, client := newProvider(t, "")
	client.On("ResendConfirmationCode", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything).Return(&cip.ResendConfirmationCodeOutput{}, nil).Once()

	require.NoError(t, p.ResendCode(context.Background(), "a@b.com"))
	client.AssertExpectations(t)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{ClientID: "c", Region: "r"}.Validate())
	assert.Error(t, Config{UserPoolID: "p", ClientID: "c"}.Validate())
	assert.Error(t, Config{UserPoolID: "p", ClientID: "c", Region: "r", AccessKeyID: "AKIA"}.Validate())
	assert.NoError(t, Config{UserPoolID: "p", ClientID: "c", Client: &MockClient{}}.Validate())
	assert.NoError(t, Config{UserPoolID: "p", ClientID: "c", Region: "r"}.Validate())
}

func TestSecretHashIsDeterministic(t *testing.T) {
	a := SecretHash("secret", "user", "client")
	assert.Equal(t, a, SecretHash("secret", "user", "client"))
	assert.NotEqual(t, a, SecretHash("secret", "other", "client"))
}
