package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptSecret reads a secret from stdin without echo when stdin is a
// terminal. With confirm set the secret is asked for twice.
func promptSecret(label string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// Piped input: one line, no confirmation.
		fmt.Fprintf(os.Stderr, "%s: ", label)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	for {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		if len(first) == 0 {
			fmt.Fprintln(os.Stderr, "value cannot be empty")
			continue
		}
		if !confirm {
			return string(first), nil
		}

		fmt.Fprintf(os.Stderr, "Confirm %s: ", strings.ToLower(label))
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			fmt.Fprintln(os.Stderr, "values do not match")
			continue
		}
		return string(first), nil
	}
}
