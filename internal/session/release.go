package session

import (
	"fmt"

	"github.com/ternarybob/arbor"
)

// Release tears down, in order, the backend, the context and the browser.
// Every step runs even if an earlier one failed or panicked; failures are
// logged and returned as diagnostics. Released handles are cleared so a
// second call does nothing. sess and backend may be nil.
func Release(logger arbor.ILogger, sess *Session, backend Cleaner) []error {
	var diags []error

	if backend != nil {
		if err := guard("backend cleanup", backend.Cleanup); err != nil {
			logger.Warn().Err(err).Msg("Backend cleanup failed")
			diags = append(diags, err)
		}
	}

	if sess == nil {
		return diags
	}

	if sess.Context != nil {
		bc := sess.Context
		sess.Context = nil
		if err := guard("close context", bc.Close); err != nil {
			logger.Warn().Err(err).Msg("Closing browser context failed")
			diags = append(diags, err)
		}
	}

	if sess.Browser != nil {
		b := sess.Browser
		sess.Browser = nil
		if err := guard("close browser", b.Close); err != nil {
			logger.Warn().Err(err).Msg("Closing browser failed")
			diags = append(diags, err)
		}
	}

	return diags
}

// guard runs fn and turns both a returned error and a panic into an error.
func guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", step, r)
		}
	}()
	if e := fn(); e != nil {
		return fmt.Errorf("%s: %w", step, e)
	}
	return nil
}
