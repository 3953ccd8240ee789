package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the Gherkin suite against a live server. Set
// QPLACE_E2E_BASE_URL to opt in; unit and integration suites cover the
// same paths without a deployment.
func TestFeatures(t *testing.T) {
	if os.Getenv("QPLACE_E2E_BASE_URL") == "" {
		t.Skip("QPLACE_E2E_BASE_URL not set, skipping end to end suite")
	}

	suite := godog.TestSuite{
		Name: "placement",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			RegisterSteps(sc, NewTestContext())
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("end to end suite failed")
	}
}
