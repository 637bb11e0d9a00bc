package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kolobok/dbadmin/internal/service"
)

// LoginPrompter implements service.Prompter over the terminal.
type LoginPrompter struct {
	reader *LineReader
	out    io.Writer
}

func NewLoginPrompter(reader *LineReader, out io.Writer) *LoginPrompter {
	return &LoginPrompter{reader: reader, out: out}
}

// NextAttempt asks the operator to pick a login path and collects the secret
// when the password path is chosen. EOF on the input stream cancels.
func (p *LoginPrompter) NextAttempt(ctx context.Context, attempt, remaining int) (service.Credential, error) {
	fmt.Fprintf(p.out, "\nLogin attempt %d (remaining: %d)\n", attempt, remaining)
	fmt.Fprintln(p.out, "  [p] enter password")
	fmt.Fprintln(p.out, "  [a] request out-of-band approval")
	fmt.Fprintln(p.out, "  [q] quit")

	for {
		if ctx.Err() != nil {
			return service.Credential{Kind: service.CredCancel}, ctx.Err()
		}

		choice, err := p.reader.ReadLine("choice: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return service.Credential{Kind: service.CredCancel}, nil
			}
			return service.Credential{}, err
		}

		switch choice {
		case "p":
			secret, err := p.reader.ReadSecret("password: ")
			if err != nil {
				return service.Credential{}, err
			}
			return service.Credential{Kind: service.CredPassword, Secret: secret}, nil
		case "a":
			fmt.Fprintln(p.out, "Approval request sent. Waiting for an answer...")
			return service.Credential{Kind: service.CredOutOfBand}, nil
		case "q":
			return service.Credential{Kind: service.CredCancel}, nil
		default:
			fmt.Fprintln(p.out, "Pick p, a or q.")
		}
	}
}

// Notify prints a gate message to the operator.
func (p *LoginPrompter) Notify(message string) {
	fmt.Fprintln(p.out, message)
}
