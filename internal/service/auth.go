package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kolobok/dbadmin/internal/approval"
	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/pkg/metrics"
)

// Outcome is the terminal state of one login session. There is deliberately
// no Failed outcome: failed attempts are retried internally, and exhausting
// the budget resolves to Cancelled.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancelled
)

// CredentialKind selects the path an attempt takes.
type CredentialKind int

const (
	CredPassword CredentialKind = iota
	CredOutOfBand
	CredCancel
)

// Credential is one operator response to the login prompt.
type Credential struct {
	Kind   CredentialKind
	Secret string
}

// Prompter is the interactive surface the gate drives. NextAttempt blocks
// until the operator answers; Notify reports a human-readable message.
type Prompter interface {
	NextAttempt(ctx context.Context, attempt, remaining int) (Credential, error)
	Notify(message string)
}

// Verifier checks a candidate secret against the remote reference.
type Verifier interface {
	Verify(ctx context.Context, candidate string) (bool, error)
}

// ApprovalRequester runs one out-of-band approval exchange.
type ApprovalRequester interface {
	RequestApproval(ctx context.Context) (approval.Result, error)
}

// AuditSink is the subset of the auditor the services need.
type AuditSink interface {
	Emit(kind models.EventKind, table, detail string)
}

// Gate is the bounded-attempt login controller. Password failures consume
// attempts; out-of-band denials consume one only when sharedBudget is set.
// A connectivity failure on the password path aborts the whole flow without
// consuming anything.
type Gate struct {
	verifier     Verifier
	approver     ApprovalRequester
	auditor      AuditSink
	logger       *slog.Logger
	maxAttempts  int
	sharedBudget bool
}

func NewGate(verifier Verifier, approver ApprovalRequester, auditor AuditSink, maxAttempts int, sharedBudget bool, logger *slog.Logger) *Gate {
	return &Gate{
		verifier:     verifier,
		approver:     approver,
		auditor:      auditor,
		logger:       logger,
		maxAttempts:  maxAttempts,
		sharedBudget: sharedBudget,
	}
}

// Authenticate runs the login session to a terminal state.
func (g *Gate) Authenticate(ctx context.Context, prompt Prompter) Outcome {
	failed := 0

	for failed < g.maxAttempts {
		cred, err := prompt.NextAttempt(ctx, failed+1, g.maxAttempts-failed)
		if err != nil || cred.Kind == CredCancel {
			g.auditor.Emit(models.EventError, "", "login cancelled by operator")
			metrics.LoginAttempts.WithLabelValues("cancelled").Inc()
			return OutcomeCancelled
		}

		switch cred.Kind {
		case CredPassword:
			ok, err := g.verifier.Verify(ctx, cred.Secret)
			if err != nil {
				// Connectivity is not a wrong password: abort, consume nothing
				g.auditor.Emit(models.EventError, "", "authentication server unreachable: "+err.Error())
				prompt.Notify("Could not reach the authentication server. Check your connection and try again later.")
				metrics.LoginAttempts.WithLabelValues("cancelled").Inc()
				return OutcomeCancelled
			}
			if ok {
				return g.succeed(prompt)
			}

			failed++
			g.auditor.Emit(models.EventError, "",
				fmt.Sprintf("failed login attempt: wrong password (attempt %d/%d)", failed, g.maxAttempts))
			metrics.LoginAttempts.WithLabelValues("failed").Inc()
			if remaining := g.maxAttempts - failed; remaining > 0 {
				prompt.Notify(fmt.Sprintf("Wrong password. Attempts remaining: %d", remaining))
			}

		case CredOutOfBand:
			result, err := g.approver.RequestApproval(ctx)
			if err != nil {
				if errors.Is(err, models.ErrApprovalPending) {
					prompt.Notify("An approval request is already pending. Wait for it to resolve.")
					continue
				}
				if ctx.Err() != nil {
					g.auditor.Emit(models.EventError, "", "login cancelled during approval wait")
					metrics.LoginAttempts.WithLabelValues("cancelled").Inc()
					return OutcomeCancelled
				}
				g.auditor.Emit(models.EventError, "", "approval request dispatch failed: "+err.Error())
				prompt.Notify("Could not send the approval request. Check your connection and try again later.")
				metrics.LoginAttempts.WithLabelValues("cancelled").Inc()
				return OutcomeCancelled
			}

			switch result {
			case approval.ResultApproved:
				return g.succeed(prompt)
			case approval.ResultDenied:
				g.auditor.Emit(models.EventError, "", "out-of-band approval denied")
				if g.sharedBudget {
					failed++
				}
				prompt.Notify("Access was not granted. Log in with the password instead.")
			case approval.ResultExpired:
				// Expired is a denial, logged distinctly
				g.auditor.Emit(models.EventError, "", models.ErrAuthExpired.Error())
				if g.sharedBudget {
					failed++
				}
				prompt.Notify("The approval request expired without an answer.")
			}
		}
	}

	g.auditor.Emit(models.EventError, "",
		fmt.Sprintf("maximum login attempts exceeded (%d)", g.maxAttempts))
	prompt.Notify(fmt.Sprintf("Maximum number of login attempts exceeded (%d). The session will be terminated.", g.maxAttempts))
	metrics.LoginAttempts.WithLabelValues("locked_out").Inc()
	return OutcomeCancelled
}

func (g *Gate) succeed(prompt Prompter) Outcome {
	g.auditor.Emit(models.EventLogin, "", "operator logged in")
	prompt.Notify("Welcome to the administration console.")
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return OutcomeSuccess
}
