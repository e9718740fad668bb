package sessions

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// callbackBinding is where to send the user once their session authenticates.
type callbackBinding struct {
	URL       string
	CreatedAt time.Time
}

// validateCallbackURL accepts absolute http(s) URLs only.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "callback_url is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("callback_url scheme %q is not allowed", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("callback_url must be absolute")
	}
	return nil
}
