package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a seam over the terminal read so tests can inject input.
var readPassword = func() (string, error) {
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(b), err
}

// LineReader wraps stdin-style input with prompt printing.
type LineReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewLineReader(in io.Reader, out io.Writer) *LineReader {
	return &LineReader{scanner: bufio.NewScanner(in), out: out}
}

// ReadLine prints prompt and returns one trimmed line. io.EOF signals the
// input stream is gone.
func (r *LineReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}

// ReadSecret prints prompt and reads a line without echo when the input is a
// terminal, falling back to a plain line read otherwise.
func (r *LineReader) ReadSecret(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(r.out, prompt)
		s, err := readPassword()
		fmt.Fprintln(r.out)
		return strings.TrimSpace(s), err
	}
	return r.ReadLine(prompt)
}
