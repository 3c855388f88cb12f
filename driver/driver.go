// Package driver is the boundary to the out-of-process browser engine.
// The pool manager and executor only see the interfaces below; the rod
// implementation lives in rod.go and the in-memory fake in drivertest.
package driver

import (
	"context"

	"github.com/go-rod/rod"
)

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	// ExecutablePath overrides the located browser binary when non-empty.
	ExecutablePath string

	// Headless controls whether the browser runs headless.
	Headless bool

	// NoSandbox disables the browser sandbox (needed in containers).
	NoSandbox bool

	// Proxy is an optional proxy URL applied to all pages.
	Proxy string

	// Args holds extra command-line flags, keyed without the leading
	// dashes. An empty value sets a bare flag.
	Args map[string]string
}

// LocateFunc finds a browser executable on the host. It returns the path
// and whether one was found.
type LocateFunc func() (string, bool)

// Driver launches browser instances.
type Driver interface {
	// Launch starts a browser process from the given executable and
	// connects to its control channel. The context bounds the launch.
	Launch(ctx context.Context, executablePath string, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser engine process.
type Browser interface {
	// NewPage creates an isolated browsing context.
	NewPage(ctx context.Context) (Page, error)

	// Disconnected is closed when the control connection to the browser
	// is lost, whether by crash or external kill. It never fires for an
	// orderly Close.
	Disconnected() <-chan struct{}

	// Close disconnects and terminates the browser process.
	Close() error
}

// Page is one browsing context within a Browser.
type Page interface {
	// Reset returns the page to about:blank, dropping the loaded DOM so
	// an idle page does not pin document memory.
	Reset() error

	// Close destroys the browsing context.
	Close() error

	// Rod exposes the underlying rod page for operations. Fake pages
	// return nil.
	Rod() *rod.Page
}
