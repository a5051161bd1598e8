package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config strings to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// adDomains are well-known ad and tracking hosts blocked when ad blocking
// is enabled. Subdomains match through the parent-domain walk below.
var adDomains = map[string]struct{}{
	"doubleclick.net":        {},
	"googlesyndication.com":  {},
	"googleadservices.com":   {},
	"google-analytics.com":   {},
	"googletagmanager.com":   {},
	"googletagservices.com":  {},
	"adnxs.com":              {},
	"adsrvr.org":             {},
	"amazon-adsystem.com":    {},
	"criteo.com":             {},
	"criteo.net":             {},
	"outbrain.com":           {},
	"taboola.com":            {},
	"moatads.com":            {},
	"pubmatic.com":           {},
	"rubiconproject.com":     {},
	"scorecardresearch.com":  {},
	"quantserve.com":         {},
	"hotjar.com":             {},
	"mixpanel.com":           {},
	"segment.io":             {},
	"segment.com":            {},
	"chartbeat.com":          {},
	"optimizely.com":         {},
	"openx.net":              {},
	"casalemedia.com":        {},
	"demdex.net":             {},
	"sharethis.com":          {},
	"addthis.com":            {},
	"connect.facebook.net":   {},
	"static.ads-twitter.com": {},
}

// isAdDomain checks a hostname and all its parent domains against the
// blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(host)
	if _, ok := adDomains[host]; ok {
		return true
	}
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := adDomains[host]; ok {
			return true
		}
	}
}

// BlockResources installs a request interceptor that refuses the given
// resource types and, optionally, requests to known ad/tracking domains.
// Returns the running router for the caller to stop, or nil when there is
// nothing to block.
func BlockResources(page *rod.Page, blockedTypes []string, blockAds bool) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, drop := blocked[ctx.Request.Type()]; drop {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockAds {
			if u, err := url.Parse(ctx.Request.URL().String()); err == nil && isAdDomain(u.Hostname()) {
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until the router is stopped, so it gets its own goroutine.
	go router.Run()

	return router
}
