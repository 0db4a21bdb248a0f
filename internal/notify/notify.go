// Package notify delivers triggered alerts to external channels. The
// in-app notification log is written elsewhere and is never routed
// through this dispatcher; only outward-facing channels live here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"farmalert/internal/config"
	"farmalert/internal/domain"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// SendResult returns channel-specific metadata after successful delivery.
// Params: sender-specific metadata fields.
// Returns: optional message identifiers.
type SendResult struct {
	MessageID int
}

// ChannelSender sends one alert to one channel.
// Params: context and alert payload.
// Returns: channel send metadata and transport error when send fails.
type ChannelSender interface {
	Channel() domain.Channel
	Send(ctx context.Context, alert domain.Alert) (SendResult, error)
}

// Dispatcher delivers alerts with configured retries and backoff.
// Params: sender list and retry policy per channel.
// Returns: send helper for the manager layer.
type Dispatcher struct {
	senders  map[domain.Channel]ChannelSender
	channels []domain.Channel
	retries  map[domain.Channel]config.NotifyRetry
	logger   *slog.Logger
}

// NewDispatcher builds the dispatcher from enabled channels.
// Params: notify config and logger.
// Returns: configured dispatcher with available senders.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	senders := make(map[domain.Channel]ChannelSender)
	retries := make(map[domain.Channel]config.NotifyRetry)

	if cfg.Telegram.Enabled {
		senders[domain.ChannelPush] = NewTelegramSender(cfg.Telegram)
		retries[domain.ChannelPush] = cfg.Telegram.Retry
	}
	if cfg.Webhook.Enabled {
		senders[domain.ChannelWebhook] = NewWebhookSender(cfg.Webhook)
		retries[domain.ChannelWebhook] = cfg.Webhook.Retry
	}
	if cfg.Email.Enabled {
		senders[domain.ChannelEmail] = NewLoggedSender(domain.ChannelEmail, cfg.Email.Recipients, logger)
	}
	if cfg.SMS.Enabled {
		senders[domain.ChannelSMS] = NewLoggedSender(domain.ChannelSMS, cfg.SMS.Recipients, logger)
	}

	channels := make([]domain.Channel, 0, len(senders))
	for channel := range senders {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	return &Dispatcher{
		senders:  senders,
		channels: channels,
		retries:  retries,
		logger:   logger,
	}
}

// Channels returns configured channel keys.
// Params: none.
// Returns: deterministic sender list.
func (d *Dispatcher) Channels() []domain.Channel {
	return d.channels
}

// Dispatch sends one alert to every requested external channel.
// Delivery is best-effort per channel: a failed channel is logged and
// the remaining channels are still attempted. The in-app channel is
// skipped here because the notification log already recorded it.
// Params: context and the triggered alert.
// Returns: number of channels that accepted the alert.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.Alert) int {
	delivered := 0
	for _, channel := range alert.Channels {
		if channel == domain.ChannelApp {
			continue
		}
		if _, err := d.Send(ctx, channel, alert); err != nil {
			d.logger.Warn("alert delivery failed",
				"rule", alert.RuleName, "channel", string(channel), "error", err.Error())
			continue
		}
		delivered++
	}
	return delivered
}

// Send sends one alert to one channel with the channel retry policy.
// Params: destination channel and alert payload.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) Send(ctx context.Context, channel domain.Channel, alert domain.Alert) (SendResult, error) {
	sender, ok := d.senders[channel]
	if !ok {
		return SendResult{}, fmt.Errorf("notify channel %q is not configured", channel)
	}
	return d.sendWithRetry(ctx, sender, alert, d.retries[channel])
}

// sendWithRetry sends one alert with the channel-specific retry policy.
// Params: sender, payload, and retry policy for the sender channel.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, alert domain.Alert, retry config.NotifyRetry) (SendResult, error) {
	if !retry.Enabled {
		return sender.Send(ctx, alert)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer

	for {
		attempt++
		result, err := sender.Send(ctx, alert)
		if err == nil {
			stopTimer(timer)
			if retry.LogEachAttempt && attempt > 1 {
				d.logger.Info("alert delivery recovered after retries",
					"channel", string(sender.Channel()), "attempt", attempt)
			}
			return result, nil
		}
		if retry.LogEachAttempt {
			d.logger.Warn("alert delivery attempt failed",
				"channel", string(sender.Channel()), "attempt", attempt, "error", err.Error())
		}

		if retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts {
			stopTimer(timer)
			return SendResult{}, fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			stopTimer(timer)
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return SendResult{}, ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// stopTimer stops a retry timer and drains a fired tick.
// Params: timer, may be nil.
// Returns: side effect only.
func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// TelegramSender sends alerts to the Telegram Bot API.
// Params: bot token, chat id, and base URL.
// Returns: push channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates the Telegram sender.
// Params: Telegram notifier config.
// Returns: initialized sender.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{
		chatID: normalizeChatID(cfg.ChatID),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("telegram chat_id is required")
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns the sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() domain.Channel {
	return domain.ChannelPush
}

// Send posts one alert message to the Telegram chat.
// Params: context and alert payload.
// Returns: transport or HTTP error.
func (s *TelegramSender) Send(ctx context.Context, alert domain.Alert) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, s.initErr
	}
	if s.client == nil {
		return SendResult{}, errors.New("telegram client is not initialized")
	}

	request := &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      formatAlertText(alert),
		ParseMode: tgmodels.ParseModeHTML,
	}
	sent, err := s.client.SendMessage(ctx, request)
	if err != nil {
		return SendResult{}, fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return SendResult{}, errors.New("telegram send returned empty message id")
	}
	return SendResult{MessageID: sent.ID}, nil
}

// formatAlertText renders one alert into a push message body.
// Params: alert payload.
// Returns: message with priority prefix and detail line.
func formatAlertText(alert domain.Alert) string {
	var text strings.Builder
	text.WriteString("[")
	text.WriteString(strings.ToUpper(string(alert.Priority)))
	text.WriteString("] ")
	text.WriteString(alert.Message)
	if alert.DetailedMessage != "" {
		text.WriteString("\n")
		text.WriteString(alert.DetailedMessage)
	}
	return text.String()
}

// normalizeChatID converts numeric chat IDs to int64 and keeps
// non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// WebhookSender posts the alert JSON to a configured HTTP endpoint.
// Params: endpoint URL, method, timeout, and headers.
// Returns: webhook channel sender.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates the webhook sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	return &WebhookSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Channel returns the sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() domain.Channel {
	return domain.ChannelWebhook
}

// Send delivers the alert JSON to the configured endpoint.
// Params: context and alert payload.
// Returns: transport or HTTP error.
func (s *WebhookSender) Send(ctx context.Context, alert domain.Alert) (SendResult, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return SendResult{}, fmt.Errorf("encode webhook payload: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{}, unexpectedHTTPStatusError("webhook", response)
	}
	return SendResult{}, nil
}

// LoggedSender records intended delivery for channels without a real
// transport yet. Email and SMS run through it until gateways exist.
// Params: channel key, recipient list, and logger.
// Returns: stub channel sender.
type LoggedSender struct {
	channel    domain.Channel
	recipients []string
	logger     *slog.Logger
}

// NewLoggedSender creates the logging stub sender.
// Params: channel key, recipient list, and logger.
// Returns: initialized sender.
func NewLoggedSender(channel domain.Channel, recipients []string, logger *slog.Logger) *LoggedSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggedSender{channel: channel, recipients: recipients, logger: logger}
}

// Channel returns the sender channel name.
// Params: none.
// Returns: configured channel key.
func (s *LoggedSender) Channel() domain.Channel {
	return s.channel
}

// Send logs one intended delivery.
// Params: context and alert payload.
// Returns: always nil.
func (s *LoggedSender) Send(_ context.Context, alert domain.Alert) (SendResult, error) {
	s.logger.Info("alert delivery recorded",
		"channel", string(s.channel),
		"rule", alert.RuleName,
		"recipients", strings.Join(s.recipients, ","),
		"message", alert.Message)
	return SendResult{}, nil
}

// unexpectedHTTPStatusError formats a non-2xx HTTP response with
// optional body.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}
