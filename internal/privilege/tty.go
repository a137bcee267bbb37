package privilege

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// isStdinTTY reports whether the process's stdin is a terminal. activate()
// refuses to proceed when it is not, so a piped invocation can never
// satisfy a privilege prompt.
func isStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassphrase opens /dev/tty directly (rather than os.Stdin) so the
// masked prompt and read always target the controlling terminal even if
// stdin itself is redirected for the tool-request payload.
func readPassphrase(prompt string) (string, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("%w: opening /dev/tty: %v", ErrNotTTY, err)
	}
	defer tty.Close()

	if !term.IsTerminal(int(tty.Fd())) {
		return "", ErrNotTTY
	}

	fmt.Fprint(tty, prompt)
	passphrase, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(passphrase), nil
}
