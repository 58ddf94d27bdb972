package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadSecret prints prompt and reads one line without echo when stdin is a
// terminal. Piped input is read as a plain line so scripts can feed passwords.
func ReadSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	fmt.Print(prompt)
	if !term.IsTerminal(fd) {
		s, err := readLine(os.Stdin)
		fmt.Println()
		return s, err
	}
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	// the echoed prompt is all that is left to clean up
	ClearPreviousLines(len(prompt))
	return strings.TrimSpace(string(b)), nil
}

// ReadLine prints prompt, reads one line and clears both from the screen.
func ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	s, err := readLine(os.Stdin)
	if err != nil {
		return "", err
	}
	ClearPreviousLines(len(prompt) + len(s))
	return s, nil
}

func readLine(r io.Reader) (string, error) {
	s, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(err == io.EOF && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}
