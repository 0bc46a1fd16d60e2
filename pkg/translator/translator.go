// Package translator resolves message keys to display strings.
// Translation catalogs are an external concern; the service only needs
// the Translate contract plus a small default implementation so display
// strings in schema files can be either literal text or message keys.
package translator

import (
	"fmt"
	"strings"
)

// Translator resolves a message key with optional parameters.
type Translator interface {
	Translate(key string, params map[string]interface{}) string
}

// MapTranslator resolves keys against an in-memory catalog. Unknown keys
// are returned unchanged, which lets schema files carry literal display
// strings without a catalog entry.
type MapTranslator struct {
	messages map[string]string
}

// NewMapTranslator creates a translator over the given catalog. A nil
// catalog yields a pass-through translator.
func NewMapTranslator(messages map[string]string) *MapTranslator {
	if messages == nil {
		messages = make(map[string]string)
	}
	return &MapTranslator{messages: messages}
}

// Translate resolves key and interpolates {{name}} placeholders from
// params.
func (t *MapTranslator) Translate(key string, params map[string]interface{}) string {
	msg, ok := t.messages[key]
	if !ok {
		msg = key
	}
	for name, value := range params {
		msg = strings.ReplaceAll(msg, "{{"+name+"}}", fmt.Sprintf("%v", value))
	}
	return msg
}
