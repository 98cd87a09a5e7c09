package analysis

// TextRenderer renders user-facing text by catalog key.
type TextRenderer interface {
	Render(key string, data any) (string, error)
}

// render falls back to the key itself when no renderer is set or the key is missing.
func render(text TextRenderer, key string, data any) string {
	if text == nil {
		return key
	}
	s, err := text.Render(key, data)
	if err != nil || s == "" {
		return key
	}
	return s
}

type countData struct {
	Count int
}
