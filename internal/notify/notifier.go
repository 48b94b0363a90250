// Package notify posts plain-text HTTP notifications when an environment
// snapshot is recorded. The primary use case is ntfy.sh, but any HTTP webhook
// works.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/history"
)

// Timeout bounds a single notification request.
const Timeout = 5 * time.Second

// Notifier posts a summary of each recorded observation.
type Notifier struct {
	url         string
	title       string
	onUnchanged bool
	client      *http.Client
	log         logrus.FieldLogger
}

// New creates a Notifier. title is used as the X-Title header; if empty,
// "condawatch" is used instead. Unchanged snapshots are only reported when
// onUnchanged is set.
func New(notifURL, title string, onUnchanged bool) *Notifier {
	if title == "" {
		title = "condawatch"
	}
	return &Notifier{
		url:         notifURL,
		title:       title,
		onUnchanged: onUnchanged,
		client:      &http.Client{Timeout: Timeout},
		log:         logrus.StandardLogger(),
	}
}

// WithLogger replaces the logger used to report delivery failures.
func (n *Notifier) WithLogger(l logrus.FieldLogger) *Notifier {
	n.log = l
	return n
}

// Recorded reports a Record result for env. The POST is synchronous because
// condawatch exits right after recording. Failures are logged and never
// returned; the return value reports whether a notification was delivered.
func (n *Notifier) Recorded(env, command string, res history.Result) bool {
	if n == nil || n.url == "" {
		return false
	}
	if !res.Changed && !n.onUnchanged {
		return false
	}
	return n.post(Message(env, command, res))
}

// Message renders the notification body for a Record result.
func Message(env, command string, res history.Result) string {
	switch {
	case !res.HasPrevious:
		return fmt.Sprintf("%s: first snapshot recorded after \"%s\" (%s)", env, command, res.ID)
	case res.Changed:
		return fmt.Sprintf("%s: packages changed after \"%s\" (%s)", env, command, res.ID)
	default:
		return fmt.Sprintf("%s: no package changes after \"%s\" (same as %s)", env, command, res.Previous)
	}
}

// post sends a plain-text POST to the configured URL.
func (n *Notifier) post(message string) bool {
	log := n.log.WithField("url", n.url)

	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		log.WithError(err).Warn("notification request")
		return false
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("notification failed")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Warn("notification rejected")
		return false
	}
	log.Debug("notification sent")
	return true
}
