// Package render loads documentation pages and returns their final HTML.
//
// Two backends are provided:
//
//   - chromium: drives a headless Chrome through chromedp, so pages that
//     build their content with JavaScript are captured after scripts run
//   - http: a plain GET request with no script execution, for static sites
//     and for environments without a browser
//
// A backend is created with New, started once per run, used for every
// page and closed at the end. Start failures are fatal for the run; Fetch
// failures are per page and the caller records them and moves on.
//
// # Cookie banners
//
// Before reading the DOM the chromium backend tries an ordered list of
// cookie-consent dismissal strategies and clicks the first visible match.
// Dismissal is best effort: the result and any error are returned to the
// caller for logging and never fail the fetch.
package render
