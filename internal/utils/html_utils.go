package utils

import (
	"html/template"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var hashtagPattern = regexp.MustCompile(`(^|\s)#([\p{L}\p{N}_]+)`)

// EnhanceStoryHTML 为图片增加懒加载与安全属性，并把正文中的 #标签 转成链接
func EnhanceStoryHTML(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
		s.SetAttr("decoding", "async")
	})

	doc.Find("body *").Contents().Each(func(i int, s *goquery.Selection) {
		if goquery.NodeName(s) != "#text" {
			return
		}
		// 链接和代码里的 # 不处理
		if s.ParentsFiltered("a, code, pre").Length() > 0 {
			return
		}
		text := s.Text()
		if !strings.Contains(text, "#") {
			return
		}
		linked := linkHashtags(template.HTMLEscapeString(text))
		if linked != template.HTMLEscapeString(text) {
			s.ReplaceWithHtml(linked)
		}
	})

	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}
	return template.HTML(html)
}

// linkHashtags expects already escaped text.
func linkHashtags(escaped string) string {
	return hashtagPattern.ReplaceAllStringFunc(escaped, func(m string) string {
		sub := hashtagPattern.FindStringSubmatch(m)
		tag := strings.ToLower(sub[2])
		return sub[1] + `<a href="/tags/` + url.PathEscape(tag) + `" class="hashtag">#` + sub[2] + `</a>`
	})
}
