package server

import (
	"strings"

	"golang.org/x/net/html"
)

const reloadScript = `
(function() {
	var proto = location.protocol === "https:" ? "wss://" : "ws://";
	var ws = new WebSocket(proto + location.host + "/ws");
	ws.onmessage = function(event) {
		var message = JSON.parse(event.data);
		if (message.type === "reload") {
			location.reload();
		}
	};
})();
`

// isHTMLDocument reports whether rendered output looks like a full
// HTML document worth script injection.
func isHTMLDocument(output string) bool {
	head := strings.ToLower(strings.TrimSpace(output))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// injectReloadScript appends the live-reload script to the document
// body. The document is parsed rather than string-patched so templates
// with unusual markup still get a well-placed script element; if
// parsing fails the output is returned unchanged.
func injectReloadScript(output string) string {
	doc, err := html.Parse(strings.NewReader(output))
	if err != nil {
		return output
	}

	body := findElement(doc, "body")
	if body == nil {
		return output
	}

	script := &html.Node{Type: html.ElementNode, Data: "script"}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: reloadScript})
	body.AppendChild(script)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return output
	}
	return b.String()
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}
