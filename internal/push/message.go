package push

import (
	"encoding/json"
	"fmt"
)

// Content is what the caller wants shown on every device.
type Content struct {
	Title string
	Body  string
	Data  map[string]any
}

// Defaults fill the platform presentation block when data carries no value.
type Defaults struct {
	Icon  string
	Badge string
	Link  string
	Tag   string
}

// Message is the provider send envelope.
type Message struct {
	Message MessageBody `json:"message"`
}

type MessageBody struct {
	Token        string            `json:"token"`
	Notification *Notification     `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Webpush      *WebpushConfig    `json:"webpush,omitempty"`
}

type Notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type WebpushConfig struct {
	Headers      map[string]string   `json:"headers,omitempty"`
	Notification WebpushNotification `json:"notification"`
	FCMOptions   *WebpushFCMOptions  `json:"fcm_options,omitempty"`
}

type WebpushNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type WebpushFCMOptions struct {
	Link string `json:"link"`
}

// presentation keys read from Content.Data
const (
	keyIcon  = "icon"
	keyBadge = "badge"
	keyLink  = "url"
	keyTag   = "tag"
)

// BuildMessage assembles the envelope for one device token.
func BuildMessage(token string, c Content, d Defaults) Message {
	data := StringifyData(c.Data)

	icon := pick(data, keyIcon, d.Icon)
	badge := pick(data, keyBadge, d.Badge)
	link := pick(data, keyLink, pick(data, "link", d.Link))
	tag := pick(data, keyTag, d.Tag)

	wp := &WebpushConfig{
		Headers: map[string]string{"Urgency": "high"},
		Notification: WebpushNotification{
			Title: c.Title,
			Body:  c.Body,
			Icon:  icon,
			Badge: badge,
			Tag:   tag,
		},
	}
	if link != "" {
		wp.FCMOptions = &WebpushFCMOptions{Link: link}
	}

	return Message{Message: MessageBody{
		Token:        token,
		Notification: &Notification{Title: c.Title, Body: c.Body},
		Data:         data,
		Webpush:      wp,
	}}
}

// StringifyData flattens an opaque map into the string map the provider
// accepts. Strings pass through, everything else is JSON encoded.
func StringifyData(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			out[k] = t
		case fmt.Stringer:
			out[k] = t.String()
		default:
			b, err := json.Marshal(t)
			if err != nil {
				out[k] = fmt.Sprint(t)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func pick(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}
