package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrUnsupportedURL is returned for anything other than an absolute http(s) URL.
var ErrUnsupportedURL = errors.New("only http and https links can be opened")

// start launches the platform opener; replaced in tests.
var start = defaultStart

func defaultStart(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open opens the specified URL (a listing photo, typically) in the user's
// default browser.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	link := u.String()
	switch runtime.GOOS {
	case "darwin":
		return start("open", link)
	case "linux":
		return start("xdg-open", link)
	case "windows":
		return start("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}
