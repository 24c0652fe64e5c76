package http

import (
	"fmt"
	"net/http"
	"net/url"
)

// ConsentCookieName is the cookie YouTube checks before serving a watch page
// to visitors from regions with a cookie consent interstitial.
const ConsentCookieName = "CONSENT"

// AcceptConsent stores a CONSENT cookie for the host of rawURL, built from the
// "v" value of the consent form. Subsequent requests to that host carry it.
func (c *Client) AcceptConsent(rawURL, formValue string) error {
	if formValue == "" {
		return fmt.Errorf("accept consent: empty form value")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("accept consent: %w", err)
	}
	c.base.Jar.SetCookies(u, []*http.Cookie{{
		Name:  ConsentCookieName,
		Value: "YES+" + formValue,
		Path:  "/",
	}})
	return nil
}

// HasConsent reports whether a CONSENT cookie is stored for rawURL's host.
func (c *Client) HasConsent(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, ck := range c.base.Jar.Cookies(u) {
		if ck.Name == ConsentCookieName {
			return true
		}
	}
	return false
}
