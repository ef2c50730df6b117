// Package chat holds the JSON text component used in server list replies.
package chat

// Message is a JSON text component. Only the fields the server list shows
// are modelled; unknown fields from other servers are dropped on decode.
type Message struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Colored creates a text component with a named color. An empty color yields
// a plain component.
func Colored(text, color string) Message {
	return Message{Text: text, Color: color}
}
