package ui

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
)

// IsCI returns true when no interactive prompt should be shown.
func IsCI() bool {
	return isTruthy(os.Getenv("CI")) ||
		isTruthy(os.Getenv("BETTERTEAMS_CI")) ||
		isTruthy(os.Getenv("GITHUB_ACTIONS"))
}

func isTruthy(v string) bool {
	return v != "" && v != "false" && v != "0"
}

// AskExecutablePath prompts for the host application's executable.
func AskExecutablePath(suggestion string) (string, error) {
	path := suggestion
	err := huh.NewInput().
		Title("Where is the Teams executable?").
		Description("Full path to ms-teams.exe (or the Teams binary on this system).").
		Value(&path).
		Validate(validateExecutable).
		Run()
	return path, err
}

func validateExecutable(path string) error {
	if path == "" {
		return errors.New("a path is required")
	}
	if !filepath.IsAbs(path) {
		return errors.New("use an absolute path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.New("file not found")
	}
	if info.IsDir() {
		return errors.New("path is a directory")
	}
	return nil
}

// Confirm prompts the user for a yes/no confirmation.
func Confirm(title string) (bool, error) {
	var confirmed bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	return confirmed, err
}
