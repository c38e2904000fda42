package e2e

import (
	"github.com/cucumber/godog"

	"unikyc/e2e/steps/common"
	"unikyc/e2e/steps/kyc"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	kyc.RegisterSteps(ctx, tc)
}
