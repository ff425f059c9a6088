package email

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
)

// Template names known to Renderer.
const (
	TemplateOTP = "otp"
)

const otpTemplate = `<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto;">
  <h2>Hello {{name}},</h2>
  <p>Your verification code is:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{code}}</p>
  <p>The code expires in {{expiresIn}}. If you did not request it, you can ignore this email.</p>
  <p>The LearnHub team</p>
</div>`

// Renderer renders Handlebars email bodies.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]*raymond.Template
}

// NewRenderer parses the built-in templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: map[string]*raymond.Template{}}
	if err := r.Register(TemplateOTP, otpTemplate); err != nil {
		return nil, err
	}
	return r, nil
}

// Register parses source and stores it under name, replacing any previous template.
func (r *Renderer) Register(name, source string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("template name is required")
	}
	tmpl, err := raymond.Parse(source)
	if err != nil {
		return fmt.Errorf("parse email template %q: %w", name, err)
	}
	r.mu.Lock()
	r.templates[name] = tmpl
	r.mu.Unlock()
	return nil
}

// Render executes the named template with data. Values are HTML escaped.
func (r *Renderer) Render(name string, data map[string]interface{}) (string, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("email template %q not found", name)
	}
	out, err := tmpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("render email template %q: %w", name, err)
	}
	return out, nil
}
