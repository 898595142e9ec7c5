package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"podnest/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type SEOHandler struct {
	pods    *services.PodService
	stories *services.StoryService
	siteURL string
}

func NewSEOHandler(pods *services.PodService, stories *services.StoryService, siteURL string) *SEOHandler {
	return &SEOHandler{pods: pods, stories: stories, siteURL: siteURL}
}

// RobotsTxt 返回 robots.txt：只开放公开页面
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 禁止爬取登录和 API
Disallow: /auth/
Disallow: /api/

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// SitemapXML 列出公开 pod 与热门故事
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	g, ctx := errgroup.WithContext(c.Request.Context())

	var set urlSet
	var podURLs, storyURLs []sitemapURL
	g.Go(func() error {
		pods, err := h.pods.GetPublicPods(ctx)
		if err != nil {
			return err
		}
		for _, p := range pods {
			podURLs = append(podURLs, sitemapURL{
				Loc:        h.siteURL + "/pods/" + strconv.FormatUint(uint64(p.ID), 10),
				LastMod:    p.CreatedAt.Format("2006-01-02"),
				ChangeFreq: "daily",
				Priority:   0.8,
			})
		}
		return nil
	})
	g.Go(func() error {
		stories, err := h.stories.GetPopularStories(ctx, services.MaxPageSize)
		if err != nil {
			return err
		}
		for _, s := range stories {
			// 越新的故事优先级越高
			priority, freq := 0.6, "weekly"
			if time.Since(s.CreatedAt) < 7*24*time.Hour {
				priority, freq = 0.7, "daily"
			}
			storyURLs = append(storyURLs, sitemapURL{
				Loc:        h.siteURL + "/stories/" + strconv.FormatUint(uint64(s.ID), 10),
				LastMod:    s.CreatedAt.Format("2006-01-02"),
				ChangeFreq: freq,
				Priority:   priority,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}

	set.XMLNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	set.URLs = append(set.URLs, sitemapURL{Loc: h.siteURL + "/", ChangeFreq: "daily", Priority: 1.0})
	set.URLs = append(set.URLs, podURLs...)
	set.URLs = append(set.URLs, storyURLs...)

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
