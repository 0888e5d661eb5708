package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// promptForOptionalUpdates implements orchestrator.PromptFunc for an
// interactive terminal session, per spec.md 4.12 step 10: enforced updates
// are listed for information only (they apply regardless), and the user is
// asked whether to accept the optional ones.
func promptForOptionalUpdates(optional, enforced []string) bool {
	return confirmOptionalUpdates(os.Stdin, optional, enforced)
}

// confirmOptionalUpdates holds the testable logic behind
// promptForOptionalUpdates, reading the yes/no answer from reader instead
// of always os.Stdin.
func confirmOptionalUpdates(reader io.Reader, optional, enforced []string) bool {
	if len(enforced) > 0 {
		fmt.Println("The following updates are required and will be applied:")
		for _, line := range enforced {
			fmt.Println("  " + line)
		}
	}
	if len(optional) == 0 {
		return false
	}

	fmt.Println("The following optional updates are available:")
	for _, line := range optional {
		fmt.Println("  " + line)
	}
	fmt.Print("Apply optional updates? [y/N] ")

	response, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
