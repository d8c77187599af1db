package callback

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/dhawalhost/sociallogin/internal/social"
	"go.uber.org/zap"
)

// BrowserPresenter shows authorization pages in the system browser.
type BrowserPresenter struct {
	logger *zap.Logger
	open   func(url string) error
}

// NewBrowserPresenter returns a presenter using the platform's URL opener.
func NewBrowserPresenter(logger *zap.Logger) *BrowserPresenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserPresenter{logger: logger, open: OpenBrowser}
}

// NewPresenterFunc returns a presenter that hands each URL to open instead of
// the system browser, e.g. to print it.
func NewPresenterFunc(open func(url string) error, logger *zap.Logger) *BrowserPresenter {
	p := NewBrowserPresenter(logger)
	p.open = open
	return p
}

// Present opens page.URL. The URL is logged as well so it can be copied by
// hand when no browser is available.
func (p *BrowserPresenter) Present(_ context.Context, page social.AuthPage) error {
	p.logger.Info("Opening authorization page", zap.String("provider", string(page.Provider)), zap.String("url", page.URL))
	if err := p.open(page.URL); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// Dismiss is a no-op; the browser tab shows the result page instead.
func (p *BrowserPresenter) Dismiss(_ context.Context, page social.AuthPage) {
	p.logger.Debug("Authorization page done", zap.String("provider", string(page.Provider)))
}

// OpenBrowser opens the default browser to the given URL.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
