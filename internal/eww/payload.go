package eww

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/ewwnotifyd/internal/registry"
)

// The payload strings are escaped at two levels: the JSON object is
// standard-escaped, quotes inside string values are HTML-entity-escaped
// so the widget parser sees a legal literal, and the whole variable
// assignment is shell-escaped when it goes out (see Driver.UpdateVar).

type actionPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type notificationPayload struct {
	Actions     []actionPayload `json:"actions"`
	Application string          `json:"application"`
	Body        string          `json:"body"`
	Icon        string          `json:"icon"`
	AppIcon     string          `json:"app_icon"`
	ID          uint32          `json:"id"`
	Summary     string          `json:"summary"`
	Urgency     string          `json:"urgency"`
}

type historyPayload struct {
	AppName string `json:"app_name"`
	Body    string `json:"body"`
	Icon    string `json:"icon"`
	AppIcon string `json:"app_icon"`
	Summary string `json:"summary"`
	Urgency string `json:"urgency"`
}

var valueEscaper = strings.NewReplacer(
	`"`, "&quot;",
	`'`, "&#39;",
	"\n", "<br>",
)

// escapeValue prepares a string value for embedding: quotes become HTML
// entities and newlines become <br> so the rendered literal stays on one
// line.
func escapeValue(s string) string {
	return valueEscaper.Replace(s)
}

// marshalPayload renders v as JSON without HTML escaping, so the entity
// escapes in string values survive verbatim.
func marshalPayload(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

var exprEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
)

// embedJSON escapes a JSON document for use inside a double-quoted
// widget-expression literal.
func embedJSON(doc string) string {
	return exprEscaper.Replace(doc)
}

// BuildActivePayload produces the widget-container expression for the
// active notifications, one widget per entry.
func BuildActivePayload(active []registry.Notification, orientation, widget string) string {
	var b strings.Builder
	b.WriteString(`(box :space-evenly false :orientation "`)
	b.WriteString(orientation)
	b.WriteString(`" `)

	for _, n := range active {
		actions := make([]actionPayload, 0, len(n.Actions))
		for _, a := range n.Actions {
			actions = append(actions, actionPayload{
				ID:   escapeValue(a.ID),
				Text: escapeValue(a.Text),
			})
		}
		doc := marshalPayload(notificationPayload{
			Actions:     actions,
			Application: escapeValue(n.AppName),
			Body:        escapeValue(n.Body),
			Icon:        escapeValue(n.Icon),
			AppIcon:     escapeValue(n.AppIcon),
			ID:          n.ID,
			Summary:     escapeValue(n.Summary),
			Urgency:     n.Urgency,
		})
		fmt.Fprintf(&b, `(box (%s :notification "%s"))`, widget, embedJSON(doc))
	}

	b.WriteString(")")
	return b.String()
}

// BuildHistoryPayload produces the widget-container expression for the
// history, newest entries first.
func BuildHistoryPayload(history []registry.HistoryEntry, orientation, widget string) string {
	var b strings.Builder
	b.WriteString(`(box :space-evenly false :orientation "`)
	b.WriteString(orientation)
	b.WriteString(`" `)

	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		doc := marshalPayload(historyPayload{
			AppName: escapeValue(h.AppName),
			Body:    escapeValue(h.Body),
			Icon:    escapeValue(h.Icon),
			AppIcon: escapeValue(h.AppIcon),
			Summary: escapeValue(h.Summary),
			Urgency: h.Urgency,
		})
		fmt.Fprintf(&b, `(%s :history "%s")`, widget, embedJSON(doc))
	}

	b.WriteString(")")
	return b.String()
}

// BuildReplyWidget produces the inline-reply widget expression for the
// given notification id.
func BuildReplyWidget(widget string, id uint32) string {
	return fmt.Sprintf("(box (%s :id %d))", widget, id)
}
