package extract

import (
	"net/url"
	"strings"
)

// AggregateMeta normalizes preview metadata across the tag dialects sites
// actually ship: Open Graph, Twitter Cards, and plain meta names. Open Graph
// wins, Twitter Cards fill gaps, generic tags are the last resort. Image and
// favicon references are resolved against baseURL so relative hrefs survive
// the trip back to the client.
func AggregateMeta(page PageMeta, baseURL string) ScrapeResult {
	result := ScrapeResult{Title: strings.TrimSpace(page.Title)}

	byProperty := map[string]string{}
	byName := map[string]string{}
	for _, tag := range page.MetaTags {
		content := strings.TrimSpace(tag.Content)
		if content == "" {
			continue
		}
		if p := strings.ToLower(strings.TrimSpace(tag.Property)); p != "" {
			if _, seen := byProperty[p]; !seen {
				byProperty[p] = content
			}
		}
		if n := strings.ToLower(strings.TrimSpace(tag.Name)); n != "" {
			if _, seen := byName[n]; !seen {
				byName[n] = content
			}
		}
	}

	pick := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := byProperty[key]; ok {
				return v
			}
			if v, ok := byName[key]; ok {
				return v
			}
		}
		return ""
	}

	if title := pick("og:title", "twitter:title", "title"); title != "" {
		result.Title = title
	}
	result.Description = pick("og:description", "twitter:description", "description")
	result.Image = resolveRef(baseURL, pick("og:image", "og:image:url", "twitter:image", "twitter:image:src", "image"))
	result.Favicon = resolveRef(baseURL, page.FaviconHref)
	if result.Favicon == "" {
		result.Favicon = defaultFavicon(baseURL)
	}

	if result.Title == "" {
		result.ScrapeStatus = StatusFailed
	} else {
		result.ScrapeStatus = StatusSuccess
	}
	return result
}

// resolveRef makes ref absolute against base. Unparseable input comes back
// unchanged rather than dropped, so a caller can still display it verbatim.
func resolveRef(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func defaultFavicon(base string) string {
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return ""
	}
	return baseURL.Scheme + "://" + baseURL.Host + "/favicon.ico"
}
