package alerting

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/pkg/jsonx"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrBadSignature     = errors.New("invalid signature")
	ErrTimestampExpired = errors.New("timestamp expired")
)

// Push event codes.
const (
	EventCodeStreamStart = 329
	EventCodeStreamStop  = 330
)

// WebhookEvent is one pushed stream event. Numeric fields accept JSON
// numbers and numeric strings.
type WebhookEvent struct {
	AppID     jsonx.Int    `json:"appid"`
	ChannelID string       `json:"channel_id"`
	EventType jsonx.Int    `json:"event_type"`
	InputID   string       `json:"input_id"`
	Interface string       `json:"interface"`
	Pipeline  jsonx.String `json:"pipeline"`
	Sign      string       `json:"sign"`
	StreamID  string       `json:"stream_id"`
	T         jsonx.Int    `json:"t"`
}

type webhookEnvelope struct {
	Data jsonx.Optional[WebhookEvent] `json:"data"`
}

// ParseWebhook decodes a pushed event. Both the enveloped form
// {"data": {...}} and a bare event object are accepted.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ev, ok := env.Data.Get()
	switch {
	case env.Data.Null():
		return nil, fmt.Errorf("%w: data is null", ErrMalformedPayload)
	case ok:
	default:
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}

	if strings.TrimSpace(ev.ChannelID) == "" {
		return nil, fmt.Errorf("%w: missing channel_id", ErrMalformedPayload)
	}
	return &ev, nil
}

// Verifier checks the shared-key digest and timestamp of pushed events.
// An empty Key disables verification.
type Verifier struct {
	Key     string
	MaxSkew time.Duration // default 10m
	now     func() time.Time
}

func NewVerifier(key string, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = 10 * time.Minute
	}
	return &Verifier{Key: key, MaxSkew: maxSkew, now: time.Now}
}

// Sign returns md5hex(key + t).
func Sign(key string, t int64) string {
	sum := md5.Sum([]byte(key + strconv.FormatInt(t, 10)))
	return hex.EncodeToString(sum[:])
}

// Verify returns ErrBadSignature or ErrTimestampExpired when ev fails the
// check.
func (v *Verifier) Verify(ev *WebhookEvent) error {
	if v == nil || v.Key == "" {
		return nil
	}
	want := Sign(v.Key, int64(ev.T))
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(ev.Sign)), []byte(want)) != 1 {
		return ErrBadSignature
	}
	skew := v.now().Sub(time.Unix(int64(ev.T), 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.MaxSkew {
		return fmt.Errorf("%w: skew %s", ErrTimestampExpired, skew.Truncate(time.Second))
	}
	return nil
}

// Condition maps the event to an alert condition. ok is false for event
// codes that carry no condition.
func (ev *WebhookEvent) Condition(now time.Time) (c telemetry.Condition, ok bool) {
	switch ev.EventType {
	case EventCodeStreamStart:
		c.Type = telemetry.EventStreamStart
		c.Message = "Stream push started"
	case EventCodeStreamStop:
		c.Type = telemetry.EventStreamStop
		c.Message = "Stream push interrupted"
	default:
		return c, false
	}

	c.ChannelID = ev.ChannelID
	c.Pipeline = telemetry.PipelineMain
	if p := strings.TrimSpace(string(ev.Pipeline)); p != "" {
		c.Pipeline = p
	}
	c.SetAt = now.UTC().Truncate(time.Second)
	if ev.T > 0 {
		c.SetAt = time.Unix(int64(ev.T), 0).UTC()
	}
	return c, true
}
