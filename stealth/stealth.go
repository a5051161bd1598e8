// Package stealth layers anti-detection evasions onto rod pages before
// navigation. The baseline is go-rod/stealth's bundled script; individual
// evasions on top of it can be toggled per request.
package stealth

import (
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Config selects which evasions are applied. The zero value applies only
// the baseline script; DefaultConfig enables everything.
type Config struct {
	// Baseline injects the go-rod/stealth script. Almost always on.
	Baseline bool `json:"baseline"`
	// Webdriver hides navigator.webdriver.
	Webdriver bool `json:"webdriver"`
	// Plugins installs a plausible navigator.plugins list.
	Plugins bool `json:"plugins"`
	// WebGLVendor reports a consumer GPU vendor/renderer pair.
	WebGLVendor bool `json:"webgl_vendor"`
	// Permissions makes permissions.query behave like headed Chrome for
	// the notifications permission.
	Permissions bool `json:"permissions"`
	// FingerprintNoise perturbs canvas and audio readbacks with
	// per-process deterministic noise.
	FingerprintNoise bool `json:"fingerprint_noise"`
}

func DefaultConfig() Config {
	return Config{
		Baseline:         true,
		Webdriver:        true,
		Plugins:          true,
		WebGLVendor:      true,
		Permissions:      true,
		FingerprintNoise: true,
	}
}

// Apply injects the configured evasions. It must run before the first
// navigation: EvalOnNewDocument only affects documents created afterwards.
// Individual evasion failures are logged and skipped rather than failing
// the scrape.
func Apply(page *rod.Page, cfg Config) {
	if cfg.Baseline {
		inject(page, "baseline", stealth.JS)
	}
	if cfg.Webdriver {
		inject(page, "webdriver", webdriverJS)
	}
	if cfg.Plugins {
		inject(page, "plugins", pluginsJS)
	}
	if cfg.WebGLVendor {
		inject(page, "webgl_vendor", webglVendorJS)
	}
	if cfg.Permissions {
		inject(page, "permissions", permissionsJS)
	}
	if cfg.FingerprintNoise {
		inject(page, "fingerprint_noise", fmt.Sprintf(fingerprintJS, sessionSeed()))
	}
}

func inject(page *rod.Page, name, js string) {
	if _, err := page.EvalOnNewDocument(js); err != nil {
		slog.Warn("stealth evasion injection failed, continuing without it",
			"evasion", name, "error", err)
	}
}

const webdriverJS = `() => {
	Object.defineProperty(Object.getPrototypeOf(navigator), 'webdriver', {
		get: () => undefined,
		configurable: true,
	});
}`

const pluginsJS = `() => {
	const fake = [
		{name: 'PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format'},
		{name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format'},
		{name: 'Chromium PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format'},
	];
	Object.defineProperty(navigator, 'plugins', {
		get: () => fake,
		configurable: true,
	});
}`

const webglVendorJS = `() => {
	const patch = (proto) => {
		if (!proto) return;
		const orig = proto.getParameter;
		proto.getParameter = function (param) {
			// UNMASKED_VENDOR_WEBGL / UNMASKED_RENDERER_WEBGL
			if (param === 37445) return 'Intel Inc.';
			if (param === 37446) return 'Intel Iris OpenGL Engine';
			return orig.call(this, param);
		};
	};
	patch(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
	patch(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);
}`

const permissionsJS = `() => {
	if (!navigator.permissions) return;
	const orig = navigator.permissions.query.bind(navigator.permissions);
	navigator.permissions.query = (params) => {
		if (params && params.name === 'notifications') {
			return Promise.resolve({state: Notification.permission});
		}
		return orig(params);
	};
}`
