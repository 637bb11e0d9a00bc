package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolobok/dbadmin/internal/approval"
	"github.com/kolobok/dbadmin/internal/models"
)

type fakeVerifier struct {
	secret string
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, candidate string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return candidate == f.secret, nil
}

type fakeApprover struct {
	results []approval.Result
	errs    []error
	calls   int
}

func (f *fakeApprover) RequestApproval(ctx context.Context) (approval.Result, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	result := approval.ResultDenied
	if i < len(f.results) {
		result = f.results[i]
	}
	return result, err
}

// scriptedPrompter replays a fixed sequence of credentials and records every
// notification the gate sends.
type scriptedPrompter struct {
	script   []Credential
	next     int
	messages []string
}

func (p *scriptedPrompter) NextAttempt(ctx context.Context, attempt, remaining int) (Credential, error) {
	if p.next >= len(p.script) {
		return Credential{Kind: CredCancel}, nil
	}
	cred := p.script[p.next]
	p.next++
	return cred, nil
}

func (p *scriptedPrompter) Notify(message string) {
	p.messages = append(p.messages, message)
}

func password(s string) Credential { return Credential{Kind: CredPassword, Secret: s} }

func newTestGate(verifier *fakeVerifier, approver *fakeApprover, sharedBudget bool) (*Gate, *fakeAudit) {
	auditor := &fakeAudit{}
	gate := NewGate(verifier, approver, auditor, 3, sharedBudget, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return gate, auditor
}

func TestAuthenticateCorrectPassword(t *testing.T) {
	gate, auditor := newTestGate(&fakeVerifier{secret: "s3cret"}, &fakeApprover{}, false)
	prompt := &scriptedPrompter{script: []Credential{password("s3cret")}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeSuccess, outcome)
	require.Len(t, auditor.byKind(models.EventLogin), 1)
	assert.Empty(t, auditor.byKind(models.EventError))
}

func TestAuthenticateRetriesThenSucceeds(t *testing.T) {
	gate, auditor := newTestGate(&fakeVerifier{secret: "s3cret"}, &fakeApprover{}, false)
	prompt := &scriptedPrompter{script: []Credential{
		password("wrong"),
		password("s3cret"),
	}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Len(t, auditor.byKind(models.EventError), 1)
	assert.Contains(t, prompt.messages[0], "Attempts remaining: 2")
}

func TestAuthenticateLockout(t *testing.T) {
	gate, auditor := newTestGate(&fakeVerifier{secret: "s3cret"}, &fakeApprover{}, false)
	prompt := &scriptedPrompter{script: []Credential{
		password("a"), password("b"), password("c"),
	}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeCancelled, outcome)

	// Exactly one failed-attempt event per attempt, plus one lockout event
	errs := auditor.byKind(models.EventError)
	require.Len(t, errs, 4)
	for _, e := range errs[:3] {
		assert.Contains(t, e.detail, "failed login attempt")
	}
	assert.Contains(t, errs[3].detail, "maximum login attempts exceeded (3)")
	assert.Contains(t, prompt.messages[len(prompt.messages)-1], "Maximum number of login attempts exceeded (3)")
}

func TestAuthenticateConnectivityConsumesNothing(t *testing.T) {
	verifier := &fakeVerifier{err: models.ErrConnectivity}
	gate, auditor := newTestGate(verifier, &fakeApprover{}, false)
	prompt := &scriptedPrompter{script: []Credential{password("anything")}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, 1, verifier.calls)

	errs := auditor.byKind(models.EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].detail, "unreachable")
	assert.NotContains(t, errs[0].detail, "failed login attempt")
}

func TestAuthenticateOutOfBandApproved(t *testing.T) {
	approver := &fakeApprover{results: []approval.Result{approval.ResultApproved}}
	gate, auditor := newTestGate(&fakeVerifier{}, approver, false)
	prompt := &scriptedPrompter{script: []Credential{{Kind: CredOutOfBand}}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeSuccess, outcome)
	require.Len(t, auditor.byKind(models.EventLogin), 1)
}

func TestAuthenticateDenialKeepsPasswordBudget(t *testing.T) {
	approver := &fakeApprover{results: []approval.Result{approval.ResultDenied}}
	gate, _ := newTestGate(&fakeVerifier{secret: "s3cret"}, approver, false)
	prompt := &scriptedPrompter{script: []Credential{
		{Kind: CredOutOfBand},
		password("a"), password("b"), password("s3cret"),
	}}

	// Denial does not consume an attempt: three password tries still remain
	outcome := gate.Authenticate(context.Background(), prompt)
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestAuthenticateDenialConsumesUnderSharedBudget(t *testing.T) {
	approver := &fakeApprover{results: []approval.Result{
		approval.ResultDenied, approval.ResultDenied, approval.ResultDenied,
	}}
	gate, auditor := newTestGate(&fakeVerifier{}, approver, true)
	prompt := &scriptedPrompter{script: []Credential{
		{Kind: CredOutOfBand}, {Kind: CredOutOfBand}, {Kind: CredOutOfBand},
	}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, 3, approver.calls)
	errs := auditor.byKind(models.EventError)
	assert.Contains(t, errs[len(errs)-1].detail, "maximum login attempts exceeded")
}

func TestAuthenticateExpiredWaitLoggedDistinctly(t *testing.T) {
	approver := &fakeApprover{results: []approval.Result{approval.ResultExpired}}
	gate, auditor := newTestGate(&fakeVerifier{secret: "s3cret"}, approver, false)
	prompt := &scriptedPrompter{script: []Credential{
		{Kind: CredOutOfBand},
		password("s3cret"),
	}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeSuccess, outcome)
	errs := auditor.byKind(models.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrAuthExpired.Error(), errs[0].detail)
}

func TestAuthenticatePendingRequestRetriesPrompt(t *testing.T) {
	approver := &fakeApprover{
		errs:    []error{models.ErrApprovalPending, nil},
		results: []approval.Result{approval.ResultDenied, approval.ResultApproved},
	}
	gate, _ := newTestGate(&fakeVerifier{}, approver, false)
	prompt := &scriptedPrompter{script: []Credential{
		{Kind: CredOutOfBand}, {Kind: CredOutOfBand},
	}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, 2, approver.calls)
}

func TestAuthenticateDispatchFailureCancels(t *testing.T) {
	approver := &fakeApprover{errs: []error{errors.New("broker down")}}
	gate, auditor := newTestGate(&fakeVerifier{}, approver, false)
	prompt := &scriptedPrompter{script: []Credential{{Kind: CredOutOfBand}}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeCancelled, outcome)
	errs := auditor.byKind(models.EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].detail, "dispatch failed")
}

func TestAuthenticateOperatorCancel(t *testing.T) {
	gate, auditor := newTestGate(&fakeVerifier{}, &fakeApprover{}, false)
	prompt := &scriptedPrompter{script: []Credential{{Kind: CredCancel}}}

	outcome := gate.Authenticate(context.Background(), prompt)

	assert.Equal(t, OutcomeCancelled, outcome)
	require.Len(t, auditor.byKind(models.EventError), 1)
	assert.Contains(t, auditor.byKind(models.EventError)[0].detail, "cancelled")
}
