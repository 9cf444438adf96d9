// ABOUTME: Turns chat messages into template views
// ABOUTME: Assistant answers are rendered from markdown with raw HTML suppressed

package webchat

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/alphabot/internal/session"
	"github.com/2389/alphabot/internal/trace"
)

// pageData holds data for the chat page
type pageData struct {
	Title     string
	Heading   string
	SessionID string
	ShowTrace bool
	Busy      bool
	Nonce     string
	Messages  []messageView
}

// messageView is one rendered log entry
type messageView struct {
	Role      string
	User      bool
	Text      string
	HTML      template.HTML
	ShowSteps bool
	Steps     []stepView
}

// stepView is one numbered trace step
type stepView struct {
	Number      int
	Description string
	Details     string
}

// newMarkdown builds the answer renderer. goldmark drops raw HTML unless
// html.WithUnsafe is set, so agent output cannot inject markup.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// renderMarkdown converts an answer to HTML. The answer's \$ escapes come
// out as plain dollar signs. On a conversion error the text is shown escaped.
func (c *Chat) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(src), &buf); err != nil {
		c.logger.Error("failed to convert markdown", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func (c *Chat) messageViews(msgs []session.ChatMessage, showTrace bool) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		v := messageView{
			Role: string(m.Role),
			User: m.Role == session.RoleUser,
		}
		if v.User {
			v.Text = m.Content
		} else {
			v.HTML = c.renderMarkdown(m.Content)
			v.ShowSteps = showTrace && len(m.Trace) > 0
			v.Steps = stepViews(m.Trace)
		}
		views = append(views, v)
	}
	return views
}

func stepViews(steps []trace.Step) []stepView {
	views := make([]stepView, len(steps))
	for i, s := range steps {
		views[i] = stepView{
			Number:      i + 1,
			Description: s.Description,
			Details:     s.DetailsText(),
		}
	}
	return views
}
