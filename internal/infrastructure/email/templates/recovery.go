// Package templates provides email template rendering.
package templates

import (
	"bytes"
	"html/template"
	"log"
)

type RecoveryEmailProps struct {
	FunnelName string
	CartItems  int
	ResumeURL  string
}

var recoveryEmailTemplate = template.Must(template.New("recoveryEmail").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>Finish your checkout</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.3; background-color: #f4f5f6; margin: 0; padding: 24px;">
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px;">
      <tr>
        <td style="padding: 32px;">
          <h1 style="font-size: 22px; margin: 0 0 16px;">Still thinking it over?</h1>
          {{if gt .CartItems 0}}
          <p>You have {{.CartItems}} item{{if gt .CartItems 1}}s{{end}} waiting in your cart{{if .FunnelName}} at {{.FunnelName}}{{end}}.</p>
          {{else}}
          <p>Your checkout{{if .FunnelName}} at {{.FunnelName}}{{end}} is saved right where you left it.</p>
          {{end}}
          <p style="margin: 24px 0;">
            <a href="{{.ResumeURL}}" style="background-color: #0867ec; border-radius: 4px; color: #ffffff; display: inline-block; font-size: 16px; font-weight: bold; padding: 12px 24px; text-decoration: none;">Pick up where you left off</a>
          </p>
          <p style="color: #9a9ea6; font-size: 13px;">If you completed your purchase already, you can ignore this email.</p>
        </td>
      </tr>
    </table>
  </body>
</html>
`))

// GetRecoveryEmailContent renders the cart recovery email HTML.
func GetRecoveryEmailContent(props RecoveryEmailProps) string {
	var buf bytes.Buffer
	if err := recoveryEmailTemplate.Execute(&buf, props); err != nil {
		log.Printf("Failed to render recovery email template: %v", err)
		return ""
	}
	return buf.String()
}
