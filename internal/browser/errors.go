package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/shop-e2e/internal/errs"
)

// IsConfigurationError reports a missing construction parameter, such as an
// empty page URL.
func IsConfigurationError(err error) bool { return errs.Is(err, errs.Configuration) }

// IsElementNotFound reports a required element that did not appear in time.
func IsElementNotFound(err error) bool { return errs.Is(err, errs.ElementNotFound) }

// IsAssertionError reports an observed value that diverged from the expected one.
func IsAssertionError(err error) bool { return errs.Is(err, errs.Assertion) }

// IsIOError reports a failure to capture or persist an artifact.
func IsIOError(err error) bool { return errs.Is(err, errs.IO) }

// IsTimeout reports whether err came from a driver timeout.
func IsTimeout(err error) bool { return errors.Is(err, playwright.ErrTimeout) }

// elementError maps a driver failure on selector to ElementNotFound when it
// timed out. Other driver errors keep their own identity.
func elementError(action, selector string, timeout time.Duration, err error) error {
	if IsTimeout(err) {
		return errs.Wrap(errs.ElementNotFound,
			fmt.Sprintf("%s: element %q not found within %s", action, selector, timeout), err)
	}
	return fmt.Errorf("%s %q: %w", action, selector, err)
}
