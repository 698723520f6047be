// Package cognito implements auth.IdentityProvider on top of an Amazon Cognito
// user pool.
package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-auth-frontend"
)

const (
	ProviderName   = "cognito"
	DefaultTimeout = 10 * time.Second
)

// Client is the subset of the Cognito API used by the provider.
type Client interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
}

// Config holds the user pool coordinates. AccessKeyID and SecretAccessKey are
// optional; when empty the default AWS credential chain is used. Client
// overrides the SDK client entirely.
type Config struct {
	UserPoolID      string
	ClientID        string
	ClientSecret    string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string
	Timeout         time.Duration
	Client          Client
}

// Validate requires the pool id, the app client id, and a region unless a
// Client is injected.
func (c Config) Validate() error {
	var regionRules, secretRules []validation.Rule
	if c.Client == nil {
		regionRules = append(regionRules, validation.Required)
	}
	if c.AccessKeyID != "" {
		secretRules = append(secretRules, validation.Required)
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.UserPoolID, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.Region, regionRules...),
		validation.Field(&c.SecretAccessKey, secretRules...),
	)
}

// IdentityProvider talks to a Cognito user pool.
type IdentityProvider struct {
	client       Client
	userPoolID   string
	clientID     string
	clientSecret string
	timeout      time.Duration
	logger       auth.Logger
}

var _ auth.IdentityProvider = (*IdentityProvider)(nil)

// Option customizes the provider.
type Option func(*IdentityProvider)

// WithLogger sets the provider logger.
func WithLogger(logger auth.Logger) Option {
	return func(p *IdentityProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewIdentityProvider builds the provider, loading the AWS configuration
// unless cfg.Client is set.
func NewIdentityProvider(ctx context.Context, cfg Config, opts ...Option) (*IdentityProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cognito config: %w", err)
	}

	client := cfg.Client
	if client == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = cip.NewFromConfig(awsCfg, func(o *cip.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &IdentityProvider{
		client:       client,
		userPoolID:   cfg.UserPoolID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      timeout,
		logger:       auth.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// Authenticate runs the USER_PASSWORD_AUTH flow.
func (p *IdentityProvider) Authenticate(ctx context.Context, username, password string) (auth.AuthResult, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return auth.AuthResult{}, classify("InitiateAuth", err)
	}

	if out.AuthenticationResult == nil {
		perr := auth.NewProviderError(ProviderName, "InitiateAuth", nil, nil)
		perr.Code = "UnsupportedChallenge"
		perr.Description = fmt.Sprintf("challenge %s is not supported", out.ChallengeName)
		return auth.AuthResult{}, perr
	}

	result := out.AuthenticationResult
	return auth.AuthResult{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
	}, nil
}

// LookupUser calls AdminGetUser.
func (p *IdentityProvider) LookupUser(ctx context.Context, username string) (auth.UserRecord, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	out, err := p.client.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return auth.UserRecord{}, classify("AdminGetUser", err)
	}

	attrs := make(auth.Attributes, len(out.UserAttributes))
	for _, attr := range out.UserAttributes {
		attrs[aws.ToString(attr.Name)] = aws.ToString(attr.Value)
	}

	return auth.UserRecord{
		Username:   aws.ToString(out.Username),
		Attributes: attrs,
		Enabled:    out.Enabled,
		Status:     string(out.UserStatus),
		CreatedAt:  out.UserCreateDate,
		UpdatedAt:  out.UserLastModifiedDate,
	}, nil
}

// DeleteUser calls AdminDeleteUser.
func (p *IdentityProvider) DeleteUser(ctx context.Context, username string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.client.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return classify("AdminDeleteUser", err)
	}
	p.logger.Info("cognito user deleted")
	return nil
}

// Register calls SignUp with attributes as user attributes.
func (p *IdentityProvider) Register(ctx context.Context, username, password string, attributes auth.Attributes) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	userAttrs := make([]types.AttributeType, 0, len(attributes))
	for name, value := range attributes {
		userAttrs = append(userAttrs, types.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	out, err := p.client.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(username),
		Password:       aws.String(password),
		SecretHash:     p.secretHash(username),
		UserAttributes: userAttrs,
	})
	if err != nil {
		return classify("SignUp", err)
	}

	if out.CodeDeliveryDetails != nil {
		p.logger.Debug("confirmation code sent via %s", out.CodeDeliveryDetails.DeliveryMedium)
	}
	return nil
}

// ConfirmRegistration calls ConfirmSignUp.
func (p *IdentityProvider) ConfirmRegistration(ctx context.Context, username, code string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.client.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(username),
	})
	if err != nil {
		return classify("ConfirmSignUp", err)
	}
	return nil
}

// ResendCode calls ResendConfirmationCode.
func (p *IdentityProvider) ResendCode(ctx context.Context, username string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.client.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(p.clientID),
		Username:   aws.String(username),
		SecretHash: p.secretHash(username),
	})
	if err != nil {
		return classify("ResendConfirmationCode", err)
	}
	return nil
}

func (p *IdentityProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

// secretHash is nil when the app client has no secret.
func (p *IdentityProvider) secretHash(username string) *string {
	if p.clientSecret == "" {
		return nil
	}
	return aws.String(SecretHash(p.clientSecret, username, p.clientID))
}

// SecretHash computes Base64(HMAC_SHA256(clientSecret, username + clientID)).
func SecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
