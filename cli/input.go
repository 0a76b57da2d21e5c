package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type input struct {
	reader *bufio.Reader
	out    io.Writer
	// fd is the terminal to read passwords from, or -1 when input is not a
	// terminal and passwords are read as plain lines.
	fd int
}

func newInput(in io.Reader, out io.Writer) *input {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &input{reader: bufio.NewReader(in), out: out, fd: fd}
}

// line reads one line with the trailing newline trimmed. A final line without
// a newline is returned before io.EOF.
func (in *input) line() (string, error) {
	s, err := in.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(s) > 0 {
			return strings.TrimSpace(s), nil
		}
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (in *input) text(prompt string) (string, error) {
	fmt.Fprint(in.out, prompt)
	return in.line()
}

func (in *input) password(prompt string) (string, error) {
	fmt.Fprint(in.out, prompt)
	if in.fd < 0 {
		return in.line()
	}
	pw, err := readPassword(in.fd)
	fmt.Fprintln(in.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
