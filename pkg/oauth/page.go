package oauth

import (
	"strings"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const pageStyle = `
	body {
		font-family: Arial, sans-serif;
		max-width: 520px;
		margin: 60px auto;
		padding: 20px;
		text-align: center;
		color: #333;
	}
	p { color: #666; font-size: 18px; }
`

// confirmationPage is the terminal page shown in the browser tab after the
// redirect has been handled, whatever the downstream outcome.
func confirmationPage() string {
	return renderPage(HTML(
		Head(
			Meta(Charset("UTF-8")),
			Title("Signed in"),
			StyleEl(Raw(pageStyle)),
		),
		Body(
			H1(Text("Signed in")),
			P(Text("You can close this tab and return to Taura.")),
		),
	))
}

// rejectionPage is shown when the redirect request was malformed or failed
// validation. The tab must still reach a terminal page rather than hang.
func rejectionPage() string {
	return renderPage(HTML(
		Head(
			Meta(Charset("UTF-8")),
			Title("Sign-in failed"),
			StyleEl(Raw(pageStyle)),
		),
		Body(
			H1(Text("Sign-in failed")),
			P(Text("The sign-in attempt could not be completed. Return to Taura and try again.")),
		),
	))
}

func renderPage(node Node) string {
	var b strings.Builder
	b.WriteString("<!doctype html>")
	_ = node.Render(&b)
	return b.String()
}
