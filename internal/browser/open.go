// Package browser hands URLs to the desktop: sign-in, PayPal approval and
// the legal pages all happen outside the terminal.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Open opens url in the user's browser. $BROWSER wins over the platform default.
func Open(url string) error {
	name, args, err := command(runtime.GOOS, os.Getenv("BROWSER"), url)
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}

// command picks the launcher for goos.
func command(goos, override, url string) (string, []string, error) {
	if fields := strings.Fields(override); len(fields) > 0 {
		return fields[0], append(fields[1:], url), nil
	}
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	}
	return "", nil, fmt.Errorf("browser: unsupported OS %s", goos)
}
