package console

import (
	"context"
	"errors"
)

// ErrControlNotFound means none of a control's locator strategies matched
// within the step timeout.
var ErrControlNotFound = errors.New("control not found")

// Control names a UI element by semantic role plus an ordered list of
// locator strategies. The console pages change selectors between releases;
// stacking the known variants here keeps that churn out of the flows.
// Selectors starting with "//" are XPath, everything else is CSS.
type Control struct {
	Name      string
	Selectors []string
}

// Driver is the web-automation capability: navigate, fill, click, wait.
// Every call blocks for at most the driver's configured step timeout.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, c Control) error
	Click(ctx context.Context, c Control) error
	Fill(ctx context.Context, c Control, value string) error
	SelectByText(ctx context.Context, c Control, text string) error
	SelectByValue(ctx context.Context, c Control, value string) error
	// Text returns the trimmed text content of the control, or
	// ErrControlNotFound quickly if it is not on the page. Used as a
	// non-blocking probe during outcome classification.
	Text(ctx context.Context, c Control) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
