package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/umputun/lifebadge/pkg/status"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., RetriesSet) track whether that field was explicitly
// set in config. This allows distinguishing explicit false/0 from "not set", enabling
// proper merge behavior where local config can override global config with zero values.
type Values struct {
	Host               string
	Port               int
	PortSet            bool // tracks if port was explicitly set
	TimeoutMs          int
	TimeoutMsSet       bool // tracks if timeout_ms was explicitly set
	Retries            int
	RetriesSet         bool // tracks if retries was explicitly set
	WatchIntervalMs    int
	WatchIntervalMsSet bool // tracks if watch_interval_ms was explicitly set
	DashboardPort      int
	DashboardPortSet   bool // tracks if dashboard_port was explicitly set

	// per-state style overrides, empty means built-in mapping
	StyleStarting    status.Style
	StyleStarted     status.Style
	StyleStopped     status.Style
	StyleFailed      status.Style
	StyleUnknown     status.Style
	StyleUnreachable status.Style

	// notification settings
	NotifyChannels        []string
	NotifyChannelsSet     bool // tracks if notify_channels was explicitly set (empty disables)
	NotifyOnFailure       bool
	NotifyOnFailureSet    bool
	NotifyOnRecovery      bool
	NotifyOnRecoverySet   bool
	NotifyTimeoutMs       int
	NotifyTimeoutMsSet    bool
	NotifyTelegramToken   string
	NotifyTelegramChat    string
	NotifySlackToken      string
	NotifySlackChannel    string
	NotifySMTPHost        string
	NotifySMTPPort        int
	NotifySMTPPortSet     bool
	NotifySMTPUsername    string
	NotifySMTPPassword    string
	NotifySMTPStartTLS    bool
	NotifySMTPStartTLSSet bool
	NotifyEmailFrom       string
	NotifyEmailTo         []string
	NotifyEmailToSet      bool
	NotifyWebhookURLs     []string
	NotifyWebhookURLsSet  bool
	NotifyCustomScript    string
}

// valuesLoader implements ValuesLoader with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

// newValuesLoader creates a new valuesLoader with the given embedded filesystem.
func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
//
//nolint:dupl // intentional structural similarity with colorLoader.Load
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	// start with embedded defaults
	embedded, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	// parse global config if exists
	global, err := vl.parseValuesFromFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}

	// parse local config if exists
	local, err := vl.parseValuesFromFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)

	return result, nil
}

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if file doesn't exist or contains only comments/whitespace.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}

	return vl.parseValuesFromBytes(data)
}

// parseValuesFromEmbedded parses values from the embedded defaults/config file.
func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
//
//nolint:gocyclo // flat list of keys, splitting would hurt readability
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var values Values
	section := cfg.Section("") // default section (no section header)

	// target
	if key, err := section.GetKey("host"); err == nil {
		values.Host = strings.TrimSpace(key.String())
	}
	if values.Port, values.PortSet, err = nonNegativeInt(section, "port"); err != nil {
		return Values{}, err
	}

	// fetch settings
	if values.TimeoutMs, values.TimeoutMsSet, err = nonNegativeInt(section, "timeout_ms"); err != nil {
		return Values{}, err
	}
	if values.Retries, values.RetriesSet, err = nonNegativeInt(section, "retries"); err != nil {
		return Values{}, err
	}
	if values.WatchIntervalMs, values.WatchIntervalMsSet, err = nonNegativeInt(section, "watch_interval_ms"); err != nil {
		return Values{}, err
	}
	if values.DashboardPort, values.DashboardPortSet, err = nonNegativeInt(section, "dashboard_port"); err != nil {
		return Values{}, err
	}

	// style overrides
	styleKeys := []struct {
		key   string
		field *status.Style
	}{
		{"style_starting", &values.StyleStarting},
		{"style_started", &values.StyleStarted},
		{"style_stopped", &values.StyleStopped},
		{"style_failed", &values.StyleFailed},
		{"style_unknown", &values.StyleUnknown},
		{"style_unreachable", &values.StyleUnreachable},
	}
	for _, sk := range styleKeys {
		key, keyErr := section.GetKey(sk.key)
		if keyErr != nil {
			continue
		}
		v := strings.TrimSpace(key.String())
		if v == "" {
			continue
		}
		st, styleErr := status.ParseStyle(v)
		if styleErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", sk.key, styleErr)
		}
		*sk.field = st
	}

	if err := parseNotifyValues(section, &values); err != nil {
		return Values{}, err
	}

	return values, nil
}

// parseNotifyValues reads notify_* keys.
func parseNotifyValues(section *ini.Section, values *Values) error {
	var err error
	if key, keyErr := section.GetKey("notify_channels"); keyErr == nil {
		values.NotifyChannels = splitList(key.String())
		values.NotifyChannelsSet = true
	}
	if values.NotifyOnFailure, values.NotifyOnFailureSet, err = boolKey(section, "notify_on_failure"); err != nil {
		return err
	}
	if values.NotifyOnRecovery, values.NotifyOnRecoverySet, err = boolKey(section, "notify_on_recovery"); err != nil {
		return err
	}
	if values.NotifyTimeoutMs, values.NotifyTimeoutMsSet, err = nonNegativeInt(section, "notify_timeout_ms"); err != nil {
		return err
	}
	if key, keyErr := section.GetKey("notify_telegram_token"); keyErr == nil {
		values.NotifyTelegramToken = strings.TrimSpace(key.String())
	}
	if key, keyErr := section.GetKey("notify_telegram_chat"); keyErr == nil {
		values.NotifyTelegramChat = strings.TrimSpace(key.String())
	}
	if key, keyErr := section.GetKey("notify_slack_token"); keyErr == nil {
		values.NotifySlackToken = strings.TrimSpace(key.String())
	}
	if key, keyErr := section.GetKey("notify_slack_channel"); keyErr == nil {
		values.NotifySlackChannel = strings.TrimSpace(key.String())
	}
	if key, keyErr := section.GetKey("notify_smtp_host"); keyErr == nil {
		values.NotifySMTPHost = strings.TrimSpace(key.String())
	}
	if values.NotifySMTPPort, values.NotifySMTPPortSet, err = nonNegativeInt(section, "notify_smtp_port"); err != nil {
		return err
	}
	if key, keyErr := section.GetKey("notify_smtp_username"); keyErr == nil {
		values.NotifySMTPUsername = strings.TrimSpace(key.String())
	}
	if key, keyErr := section.GetKey("notify_smtp_password"); keyErr == nil {
		values.NotifySMTPPassword = key.String()
	}
	if values.NotifySMTPStartTLS, values.NotifySMTPStartTLSSet, err = boolKey(section, "notify_smtp_starttls"); err != nil {
		return err
	}
	if key, keyErr := section.GetKey("notify_email_from"); keyErr == nil {
		values.NotifyEmailFrom = strings.TrimSpace(key.String())
	}
	if key, keyErr := section.GetKey("notify_email_to"); keyErr == nil {
		values.NotifyEmailTo = splitList(key.String())
		values.NotifyEmailToSet = true
	}
	if key, keyErr := section.GetKey("notify_webhook_urls"); keyErr == nil {
		values.NotifyWebhookURLs = splitList(key.String())
		values.NotifyWebhookURLsSet = true
	}
	if key, keyErr := section.GetKey("notify_custom_script"); keyErr == nil {
		values.NotifyCustomScript = expandTilde(strings.TrimSpace(key.String()))
	}
	return nil
}

// nonNegativeInt reads an optional int key, returning whether it was present.
func nonNegativeInt(section *ini.Section, name string) (val int, set bool, err error) {
	key, keyErr := section.GetKey(name)
	if keyErr != nil {
		return 0, false, nil
	}
	if strings.TrimSpace(key.String()) == "" {
		return 0, false, nil
	}
	val, err = key.Int()
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	if val < 0 {
		return 0, false, fmt.Errorf("invalid %s: must be non-negative, got %d", name, val)
	}
	return val, true, nil
}

// boolKey reads an optional bool key, returning whether it was present.
func boolKey(section *ini.Section, name string) (val, set bool, err error) {
	key, keyErr := section.GetKey(name)
	if keyErr != nil {
		return false, false, nil
	}
	val, err = key.Bool()
	if err != nil {
		return false, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return val, true, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var res []string
	for p := range strings.SplitSeq(strings.TrimSpace(v), ",") {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// expandTilde replaces a leading ~/ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// stripComments removes lines starting with '#', used to detect fully commented-out configs.
func stripComments(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := make([]string, 0, strings.Count(content, "\n")+1)
	for line := range strings.SplitSeq(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.PortSet {
		dst.Port, dst.PortSet = src.Port, true
	}
	if src.TimeoutMsSet {
		dst.TimeoutMs, dst.TimeoutMsSet = src.TimeoutMs, true
	}
	if src.RetriesSet {
		dst.Retries, dst.RetriesSet = src.Retries, true
	}
	if src.WatchIntervalMsSet {
		dst.WatchIntervalMs, dst.WatchIntervalMsSet = src.WatchIntervalMs, true
	}
	if src.DashboardPortSet {
		dst.DashboardPort, dst.DashboardPortSet = src.DashboardPort, true
	}

	mergeStyle(&dst.StyleStarting, src.StyleStarting)
	mergeStyle(&dst.StyleStarted, src.StyleStarted)
	mergeStyle(&dst.StyleStopped, src.StyleStopped)
	mergeStyle(&dst.StyleFailed, src.StyleFailed)
	mergeStyle(&dst.StyleUnknown, src.StyleUnknown)
	mergeStyle(&dst.StyleUnreachable, src.StyleUnreachable)

	if src.NotifyChannelsSet {
		dst.NotifyChannels, dst.NotifyChannelsSet = src.NotifyChannels, true
	}
	if src.NotifyOnFailureSet {
		dst.NotifyOnFailure, dst.NotifyOnFailureSet = src.NotifyOnFailure, true
	}
	if src.NotifyOnRecoverySet {
		dst.NotifyOnRecovery, dst.NotifyOnRecoverySet = src.NotifyOnRecovery, true
	}
	if src.NotifyTimeoutMsSet {
		dst.NotifyTimeoutMs, dst.NotifyTimeoutMsSet = src.NotifyTimeoutMs, true
	}
	if src.NotifyTelegramToken != "" {
		dst.NotifyTelegramToken = src.NotifyTelegramToken
	}
	if src.NotifyTelegramChat != "" {
		dst.NotifyTelegramChat = src.NotifyTelegramChat
	}
	if src.NotifySlackToken != "" {
		dst.NotifySlackToken = src.NotifySlackToken
	}
	if src.NotifySlackChannel != "" {
		dst.NotifySlackChannel = src.NotifySlackChannel
	}
	if src.NotifySMTPHost != "" {
		dst.NotifySMTPHost = src.NotifySMTPHost
	}
	if src.NotifySMTPPortSet {
		dst.NotifySMTPPort, dst.NotifySMTPPortSet = src.NotifySMTPPort, true
	}
	if src.NotifySMTPUsername != "" {
		dst.NotifySMTPUsername = src.NotifySMTPUsername
	}
	if src.NotifySMTPPassword != "" {
		dst.NotifySMTPPassword = src.NotifySMTPPassword
	}
	if src.NotifySMTPStartTLSSet {
		dst.NotifySMTPStartTLS, dst.NotifySMTPStartTLSSet = src.NotifySMTPStartTLS, true
	}
	if src.NotifyEmailFrom != "" {
		dst.NotifyEmailFrom = src.NotifyEmailFrom
	}
	if src.NotifyEmailToSet {
		dst.NotifyEmailTo, dst.NotifyEmailToSet = src.NotifyEmailTo, true
	}
	if src.NotifyWebhookURLsSet {
		dst.NotifyWebhookURLs, dst.NotifyWebhookURLsSet = src.NotifyWebhookURLs, true
	}
	if src.NotifyCustomScript != "" {
		dst.NotifyCustomScript = src.NotifyCustomScript
	}
}

func mergeStyle(dst *status.Style, src status.Style) {
	if src != "" {
		*dst = src
	}
}
