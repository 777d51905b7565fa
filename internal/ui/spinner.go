package ui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// WithSpinner runs fn behind a spinner titled title. The spinner stops when
// fn returns or ctx is cancelled; in CI fn runs without one.
func WithSpinner(ctx context.Context, title string, fn func() error) error {
	if IsCI() {
		return fn()
	}
	var actionErr error
	err := spinner.New().
		Context(ctx).
		Title(title).
		Action(func() {
			actionErr = fn()
		}).
		Run()
	if err != nil {
		return err
	}
	return actionErr
}
