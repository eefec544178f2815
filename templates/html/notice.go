package templates

import (
	"fmt"
	"html"
	"strings"
)

// Notice is one transactional email: a headline, a greeting, body paragraphs
// and an optional highlighted value such as a code or a vehicle plate
type Notice struct {
	Subject    string
	Greeting   string
	Paragraphs []string
	Highlight  string
	Footnote   string
}

// Plain renders the notice as text, one paragraph per line
func (n Notice) Plain() string {
	lines := []string{n.Greeting}
	lines = append(lines, n.Paragraphs...)
	if n.Highlight != "" {
		lines = append(lines, n.Highlight)
	}
	if n.Footnote != "" {
		lines = append(lines, n.Footnote)
	}
	return strings.Join(lines, "\n")
}

// HTML renders the notice in the SmartWaste layout. Every field is escaped.
func (n Notice) HTML() string {
	var body strings.Builder
	fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(n.Greeting))
	for _, p := range n.Paragraphs {
		fmt.Fprintf(&body, "      <p>%s</p>\n", html.EscapeString(p))
	}
	if n.Highlight != "" {
		fmt.Fprintf(&body, "      <div class=\"highlight\">%s</div>\n", html.EscapeString(n.Highlight))
	}
	if n.Footnote != "" {
		fmt.Fprintf(&body, "      <p class=\"note\">%s</p>\n", html.EscapeString(n.Footnote))
	}
	subject := html.EscapeString(n.Subject)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: Arial, Helvetica, sans-serif; margin: 0; padding: 0; background-color: #f0fdf4; }
    .container { max-width: 560px; margin: 24px auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; }
    .header { background-color: #15803d; padding: 28px 24px; color: #ffffff; }
    .header h1 { margin: 0; font-size: 20px; }
    .content { padding: 28px 24px; color: #1f2937; line-height: 1.5; font-size: 15px; }
    .highlight { margin: 20px 0; padding: 14px; text-align: center; font-size: 22px; font-weight: bold; letter-spacing: 2px; background-color: #dcfce7; color: #14532d; border-radius: 6px; }
    .note { color: #6b7280; font-size: 13px; }
    .footer { padding: 18px 24px; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>SmartWaste &middot; %s</h1></div>
    <div class="content">
      %s    </div>
    <div class="footer">SmartWaste waste collection. You get this email because you have a SmartWaste account.</div>
  </div>
</body>
</html>`, subject, subject, body.String())
}
