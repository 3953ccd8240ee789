package e2e

import (
	"github.com/cucumber/godog"

	"qplace/e2e/steps/auth"
	"qplace/e2e/steps/common"
	"qplace/e2e/steps/placement"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register token-grant steps
	auth.RegisterSteps(ctx, tc)

	// Register placement-job steps
	placement.RegisterSteps(ctx, tc)
}
