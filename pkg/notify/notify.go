// Package notify sends notifications when a watched lifecycle endpoint fails or recovers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	ntfy "github.com/go-pkgz/notify"

	"github.com/umputun/lifebadge/pkg/status"
)

// Params holds configuration for creating a notification Service.
type Params struct {
	Channels      []string
	OnFailure     bool // notify when a target enters Failed or Unreachable
	OnRecovery    bool // notify when a target returns to Started from a failure state
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// Service orchestrates sending notifications through configured channels.
type Service struct {
	channels   []channel      // paired notifier + destination
	custom     *customChannel // optional custom script channel
	onFailure  bool
	onRecovery bool
	timeoutMs  int
	hostname   string // resolved once at creation via os.Hostname()
	log        lgr.L
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // true for channels that use HTML parse mode (e.g., telegram)
}

// Transition describes a lifecycle state change of a watched target.
type Transition struct {
	Target string    `json:"target"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`

	fromFailure bool
	toFailure   bool
	toStarted   bool
}

// NewTransition makes a transition between two parsed states.
func NewTransition(target string, from, to status.State, reason string, at time.Time) Transition {
	return Transition{
		Target:      target,
		From:        from.String(),
		To:          to.String(),
		Reason:      reason,
		At:          at,
		fromFailure: from.IsFailure(),
		toFailure:   to.IsFailure(),
		toStarted:   to.Kind() == status.KindStarted,
	}
}

// IsFailure reports whether the transition enters a failure state.
func (t Transition) IsFailure() bool { return t.toFailure }

// IsRecovery reports whether the transition leaves a failure state for Started.
func (t Transition) IsRecovery() bool { return t.fromFailure && t.toStarted }

// New creates a notification Service from the given Params.
// returns nil, nil if no channels are configured, enabling callers to skip nil checks via nil-safe Send.
// validates required fields per channel and returns an error for misconfigured channels.
func New(p Params, log lgr.L) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil,nil signals "no channels configured", Send is nil-safe
	}

	if log == nil {
		log = lgr.Default()
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := &Service{
		onFailure:  p.OnFailure,
		onRecovery: p.OnRecovery,
		timeoutMs:  p.TimeoutMs,
		hostname:   hostname,
		log:        log,
	}
	if svc.timeoutMs <= 0 {
		svc.timeoutMs = 10000
	}

	for _, ch := range p.Channels {
		switch strings.TrimSpace(strings.ToLower(ch)) {
		case "telegram":
			if p.TelegramToken == "" {
				return nil, errors.New("telegram channel: notify_telegram_token is required")
			}
			if p.TelegramChat == "" {
				return nil, errors.New("telegram channel: notify_telegram_chat is required")
			}
			c, cErr := telegramChannelMaker(p)
			if cErr != nil {
				// telegram init makes a live API call to verify the bot token;
				// if the network/API is unavailable, skip the channel instead of blocking
				// startup.
				// redact the token from the error to avoid leaking it in logs
				errMsg := strings.ReplaceAll(cErr.Error(), p.TelegramToken, "[REDACTED]")
				log.Logf("[WARN] telegram channel disabled: %s", errMsg)
				continue
			}
			svc.channels = append(svc.channels, c)
		case "email":
			c, cErr := makeEmailChannel(p)
			if cErr != nil {
				return nil, fmt.Errorf("email channel: %w", cErr)
			}
			svc.channels = append(svc.channels, c)
		case "slack":
			c, cErr := makeSlackChannel(p)
			if cErr != nil {
				return nil, fmt.Errorf("slack channel: %w", cErr)
			}
			svc.channels = append(svc.channels, c)
		case "webhook":
			chs, cErr := makeWebhookChannels(p)
			if cErr != nil {
				return nil, fmt.Errorf("webhook channel: %w", cErr)
			}
			svc.channels = append(svc.channels, chs...)
		case "custom":
			if p.CustomScript == "" {
				return nil, errors.New("custom channel: notify_custom_script is required")
			}
			svc.custom = newCustomChannel(p.CustomScript)
		default:
			return nil, fmt.Errorf("unknown notification channel: %q", ch)
		}
	}

	if len(svc.channels) == 0 && svc.custom == nil {
		log.Logf("[WARN] all notification channels were disabled due to initialization errors")
	}

	return svc, nil
}

// Send sends a notification for the given transition. nil-safe on receiver, callers don't need nil checks.
// only failure and recovery transitions are sent, filtered by onFailure/onRecovery flags.
// errors are logged but never returned (best-effort).
func (s *Service) Send(ctx context.Context, tr Transition) {
	if s == nil {
		return
	}

	switch {
	case tr.IsFailure() && s.onFailure:
	case tr.IsRecovery() && s.onRecovery:
	default:
		return
	}

	msg := s.formatMessage(tr)

	timeout := time.Duration(s.timeoutMs) * time.Millisecond
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// send to go-pkgz/notify channels
	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(sendCtx, ch.dest, text); err != nil {
			s.log.Logf("[WARN] notification failed for %s: %v", ch.notifier, err)
		}
	}

	// send to custom script channel
	if s.custom != nil {
		if err := s.custom.send(sendCtx, tr); err != nil {
			s.log.Logf("[WARN] custom notification failed: %v", err)
		}
	}
}

// formatMessage creates a plain text notification message from the transition.
func (s *Service) formatMessage(tr Transition) string {
	var b strings.Builder

	if tr.IsRecovery() {
		fmt.Fprintf(&b, "%s recovered (checked from %s)\n", tr.Target, s.hostname)
	} else {
		fmt.Fprintf(&b, "%s is %s (checked from %s)\n", tr.Target, strings.ToLower(tr.To), s.hostname)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "state:  %s -> %s\n", tr.From, tr.To)
	if tr.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", tr.Reason)
	}
	if !tr.At.IsZero() {
		fmt.Fprintf(&b, "at:     %s\n", tr.At.Format(time.RFC3339))
	}

	return b.String()
}

// telegramChannelMaker creates a telegram notifier and destination.
// overridden in tests to avoid live API calls.
var telegramChannelMaker = makeTelegramChannel

// makeTelegramChannel creates a telegram notifier and destination.
// uses ntfy.Telegram with the token, sending to telegram:<chat>?parseMode=HTML.
// caller must validate that TelegramToken and TelegramChat are non-empty before calling.
func makeTelegramChannel(p Params) (channel, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
	if err != nil {
		return channel{}, fmt.Errorf("create telegram notifier: %w", err)
	}

	dest := fmt.Sprintf("telegram:%s?parseMode=HTML", p.TelegramChat)
	return channel{notifier: tg, dest: dest, htmlEscape: true}, nil
}

// makeEmailChannel creates an email notifier and destination.
func makeEmailChannel(p Params) (channel, error) {
	if p.SMTPHost == "" {
		return channel{}, errors.New("notify_smtp_host is required")
	}
	if p.EmailFrom == "" {
		return channel{}, errors.New("notify_email_from is required")
	}
	if len(p.EmailTo) == 0 {
		return channel{}, errors.New("notify_email_to is required")
	}

	em := ntfy.NewEmail(ntfy.SMTPParams{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUsername,
		Password: p.SMTPPassword,
		StartTLS: p.SMTPStartTLS,
	})

	// build mailto: destination with all recipients, from, and subject
	to := strings.Join(p.EmailTo, ",")
	dest := fmt.Sprintf("mailto:%s?from=%s&subject=%s",
		to,
		url.QueryEscape(p.EmailFrom),
		url.QueryEscape("lifebadge notification"),
	)

	return channel{notifier: em, dest: dest}, nil
}

// makeSlackChannel creates a slack notifier and destination.
func makeSlackChannel(p Params) (channel, error) {
	if p.SlackToken == "" {
		return channel{}, errors.New("notify_slack_token is required")
	}
	if p.SlackChannel == "" {
		return channel{}, errors.New("notify_slack_channel is required")
	}

	sl := ntfy.NewSlack(p.SlackToken)
	dest := "slack:" + p.SlackChannel
	return channel{notifier: sl, dest: dest}, nil
}

// makeWebhookChannels creates webhook notifiers for each configured URL.
func makeWebhookChannels(p Params) ([]channel, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, errors.New("notify_webhook_urls is required")
	}

	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	var channels []channel
	for _, u := range p.WebhookURLs {
		channels = append(channels, channel{notifier: wh, dest: u})
	}
	return channels, nil
}
