package modules

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/core"
)

const selEmbedLink = "p#embed-link"

// AddCobaltLink appends a cobalt.tools download link after the embed-link
// paragraph on a watch page. Missing anchor means the layout changed; skip.
func AddCobaltLink(doc *goquery.Document, video core.VideoInfo) {
	anchor := doc.Find(selEmbedLink).First()
	if anchor.Length() == 0 {
		return
	}
	watchURL := "https://www.youtube.com/watch?v=" + video.VideoID
	href := "https://cobalt.tools/?u=" + url.QueryEscape(watchURL)
	anchor.AfterHtml(`<p><a href="` + href + `">Download from cobalt.tools</a></p>`)
}
