package api

import (
	"github.com/osteele/liquid"

	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
)

var liquidEngine = liquid.NewEngine()

// defaultConfirmationTemplate renders when a tenant has no custom page.
// Deliberately generic: it never echoes the email address back, and it
// reads the same whether the unsubscribe worked or not.
const defaultConfirmationTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Unsubscribed</title>
  <style>
    body { font-family: -apple-system, sans-serif; background: #f5f5f5; margin: 0; }
    .card { max-width: 480px; margin: 10vh auto; background: #fff; border-radius: 8px;
            padding: 2rem; text-align: center; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
    h1 { font-size: 1.4rem; color: #222; }
    p { color: #555; }
  </style>
</head>
<body>
  <div class="card">
    <h1>You have been unsubscribed</h1>
    <p>You will no longer receive emails from {{ tenantName }}.</p>
    <p>Changed your mind? You can subscribe again any time.</p>
  </div>
</body>
</html>`

// renderConfirmation renders the unsubscribe confirmation page, preferring
// the tenant's custom template. A broken custom template falls back to the
// default rather than surfacing an error page.
func renderConfirmation(t *tenant.Tenant) string {
	tmpl := defaultConfirmationTemplate
	bindings := liquid.Bindings{"tenantName": "this newsletter"}

	if t != nil {
		if t.Name != "" {
			bindings["tenantName"] = t.Name
		}
		if t.UnsubscribeTemplate != "" {
			tmpl = t.UnsubscribeTemplate
		}
	}

	out, err := liquidEngine.ParseAndRenderString(tmpl, bindings)
	if err == nil {
		return out
	}
	logger.Warn("confirmation template render failed, using default", "err", err)

	out, err = liquidEngine.ParseAndRenderString(defaultConfirmationTemplate, bindings)
	if err != nil {
		// The default template is static apart from one variable; if even
		// that fails, serve it raw.
		return defaultConfirmationTemplate
	}
	return out
}
