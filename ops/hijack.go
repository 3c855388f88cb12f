package ops

import (
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// mountHijack installs a request interceptor that strips the configured
// resource types and fails subresource requests to hosts outside the
// domain policy.
//
// Returns the running router so the caller can defer router.Stop(), or nil
// when there is nothing to intercept.
func mountHijack(page *rod.Page, blockedTypes []string, policy *DomainPolicy) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	enforce := policy != nil && (policy.allow != nil || policy.deny != nil)
	if len(blocked) == 0 && !enforce {
		return nil
	}

	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, shouldBlock := blocked[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		if enforce {
			if u, err := url.Parse(ctx.Request.URL().String()); err == nil {
				if !policy.AllowsHost(u.Hostname()) {
					ctx.Response.Fail(proto.NetworkErrorReasonAccessDenied)
					return
				}
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine. It exits
	// when router.Stop() is called.
	go router.Run()

	return router
}
