package auth

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetClientID() string
	GetClientSecret() string
	SetAccessToken(token string)
	ClearAccessToken()
}

// RegisterSteps registers token-grant step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	// Token steps
	ctx.Step(`^I am authenticated$`, steps.authenticate)
	ctx.Step(`^I request a token with valid client credentials$`, steps.requestToken)
	ctx.Step(`^I request a token with client secret "([^"]*)"$`, steps.requestTokenWithSecret)
	ctx.Step(`^I save the access token$`, steps.saveAccessToken)

	// Validation steps
	ctx.Step(`^I GET "([^"]*)" with invalid token "([^"]*)"$`, steps.getWithInvalidToken)
}

type authSteps struct {
	tc TestContext
}

// authenticate runs the full client-credentials grant so later steps can
// call protected endpoints.
func (s *authSteps) authenticate(ctx context.Context) error {
	s.tc.ClearAccessToken()
	if err := s.requestToken(ctx); err != nil {
		return err
	}
	return s.saveAccessToken(ctx)
}

func (s *authSteps) requestToken(ctx context.Context) error {
	body := map[string]interface{}{
		"client_id":     s.tc.GetClientID(),
		"client_secret": s.tc.GetClientSecret(),
	}
	return s.tc.POST("/v1/token", body)
}

func (s *authSteps) requestTokenWithSecret(ctx context.Context, secret string) error {
	body := map[string]interface{}{
		"client_id":     s.tc.GetClientID(),
		"client_secret": secret,
	}
	return s.tc.POST("/v1/token", body)
}

func (s *authSteps) saveAccessToken(ctx context.Context) error {
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	value, ok := token.(string)
	if !ok || value == "" {
		return fmt.Errorf("access_token is not a usable string: %v", token)
	}
	s.tc.SetAccessToken(value)
	return nil
}

func (s *authSteps) getWithInvalidToken(ctx context.Context, path, token string) error {
	s.tc.ClearAccessToken()
	return s.tc.GET(path, map[string]string{
		"Authorization": "Bearer " + token,
	})
}
