package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestScrapeErrorTimeout(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &ScrapeError{URL: "https://www.youtube.com/@somebot", Timeout: NavTimeout, Err: cause}

	msg := err.Error()
	if !strings.Contains(msg, "timeout") || !strings.Contains(msg, NavTimeout.String()) {
		t.Errorf("Error() = %q, want the navigation budget in a timeout message", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved through Unwrap")
	}
}

func TestScrapeErrorNavigation(t *testing.T) {
	err := &ScrapeError{URL: "about", Err: errors.New("no such element")}
	if strings.Contains(err.Error(), "timeout") {
		t.Errorf("Error() = %q, zero budget must read as a navigation failure", err.Error())
	}
}
