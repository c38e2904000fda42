package kyc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/cucumber/godog"
)

// farUnlockHeight keeps scenario payloads sealed for the life of the run.
const farUnlockHeight = 1_000_000_000

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetAccessToken() string
	GetAdminToken() string
	GetAddress() string
	GetRecordID() string
	SetRecordID(recordID string)
	GetShares() [][]byte
	SetShares(shares [][]byte)
}

// RegisterSteps registers KYC lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &kycSteps{tc: tc}

	// Status
	ctx.Step(`^I check the status of "([^"]*)"$`, steps.checkStatusOf)
	ctx.Step(`^I check my status$`, steps.checkMyStatus)
	ctx.Step(`^I request my unlock estimate$`, steps.requestUnlockEstimate)

	// Submission
	ctx.Step(`^I submit a verification without a token$`, steps.submitWithoutToken)
	ctx.Step(`^I submit a verification with payload "([^"]*)"$`, steps.submitVerification)
	ctx.Step(`^I submit a verification with a (\d+)-of-(\d+) scheme$`, steps.submitWithScheme)
	ctx.Step(`^I save the record$`, steps.saveRecord)

	// Operator decisions
	ctx.Step(`^the operator approves the record$`, steps.approveRecord)
	ctx.Step(`^the operator rejects the record with reason "([^"]*)"$`, steps.rejectRecord)
	ctx.Step(`^I approve the record with my account token$`, steps.approveWithAccountToken)

	// Payload
	ctx.Step(`^I request the payload with (\d+) shares$`, steps.requestPayload)
}

type kycSteps struct {
	tc TestContext
}

func (s *kycSteps) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.tc.GetAccessToken()}
}

func (s *kycSteps) admin() map[string]string {
	return map[string]string{"X-Admin-Token": s.tc.GetAdminToken()}
}

func (s *kycSteps) checkStatusOf(_ context.Context, identifier string) error {
	return s.tc.POST("/v1/kyc/status", map[string]string{"identifier": identifier}, nil)
}

func (s *kycSteps) checkMyStatus(ctx context.Context) error {
	if s.tc.GetAddress() == "" {
		return errors.New("UNIKYC_E2E_ADDRESS not set")
	}
	return s.checkStatusOf(ctx, s.tc.GetAddress())
}

func (s *kycSteps) requestUnlockEstimate(_ context.Context) error {
	return s.tc.POST("/v1/kyc/unlock-estimate", map[string]string{}, s.bearer())
}

func (s *kycSteps) submitWithoutToken(_ context.Context) error {
	return s.tc.POST("/v1/kyc/submissions", map[string]any{
		"payload":             base64.StdEncoding.EncodeToString([]byte("passport")),
		"unlock_block_height": farUnlockHeight,
	}, nil)
}

func (s *kycSteps) submitVerification(_ context.Context, payload string) error {
	return s.tc.POST("/v1/kyc/submissions", map[string]any{
		"payload":             base64.StdEncoding.EncodeToString([]byte(payload)),
		"unlock_block_height": farUnlockHeight,
	}, s.bearer())
}

func (s *kycSteps) submitWithScheme(_ context.Context, required, total int) error {
	return s.tc.POST("/v1/kyc/submissions", map[string]any{
		"payload":             base64.StdEncoding.EncodeToString([]byte("passport")),
		"total_shares":        total,
		"required_shares":     required,
		"unlock_block_height": farUnlockHeight,
	}, s.bearer())
}

func (s *kycSteps) saveRecord(_ context.Context) error {
	recordID, err := s.tc.GetResponseField("record.id")
	if err != nil {
		return err
	}
	s.tc.SetRecordID(fmt.Sprint(recordID))

	raw, err := s.tc.GetResponseField("shares")
	if err != nil {
		return err
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("shares is not a list: %v", raw)
	}
	shares := make([][]byte, 0, len(list))
	for _, item := range list {
		share, err := base64.StdEncoding.DecodeString(fmt.Sprint(item))
		if err != nil {
			return fmt.Errorf("decode share: %w", err)
		}
		shares = append(shares, share)
	}
	s.tc.SetShares(shares)
	return nil
}

func (s *kycSteps) recordPath() (string, error) {
	if s.tc.GetRecordID() == "" {
		return "", errors.New("no record saved in this scenario")
	}
	return "/admin/kyc/records/" + s.tc.GetRecordID(), nil
}

func (s *kycSteps) approveRecord(_ context.Context) error {
	path, err := s.recordPath()
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/approve", nil, s.admin())
}

func (s *kycSteps) rejectRecord(_ context.Context, reason string) error {
	path, err := s.recordPath()
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/reject", map[string]string{"reason": reason}, s.admin())
}

func (s *kycSteps) approveWithAccountToken(_ context.Context) error {
	path, err := s.recordPath()
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/approve", nil, s.bearer())
}

func (s *kycSteps) requestPayload(_ context.Context, n int) error {
	shares := s.tc.GetShares()
	if n > len(shares) {
		return fmt.Errorf("only %d shares saved", len(shares))
	}
	encoded := make([]string, n)
	for i := range n {
		encoded[i] = base64.StdEncoding.EncodeToString(shares[i])
	}
	return s.tc.POST("/v1/kyc/records/"+s.tc.GetRecordID()+"/payload", map[string]any{"shares": encoded}, s.bearer())
}
