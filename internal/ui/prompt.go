package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptCredentials reads a username and password from the terminal. The
// password is read without echo when stdin is a terminal.
func PromptCredentials(what string) (string, string, error) {
	fmt.Printf("%s username: ", what)
	username, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)

	password, err := PromptPassword(fmt.Sprintf("%s password", what))
	if err != nil {
		return "", "", err
	}

	return username, password, nil
}

// PromptPassword reads a password without echoing it. When stdin is not a
// terminal (tests, pipes) it falls back to a plain line read.
func PromptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}
