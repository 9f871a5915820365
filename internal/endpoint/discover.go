package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// maxDocumentSize caps the discovery response body.
const maxDocumentSize = 1 << 20

// Discover fetches a discovery document and returns its webSocketDebuggerUrl.
// The URL is tried as given, then with /json/version appended.
func Discover(ctx context.Context, u *url.URL, opts Options) (string, error) {
	candidates := []string{u.String()}
	if versionURL := u.JoinPath("json", "version").String(); versionURL != candidates[0] {
		candidates = append(candidates, versionURL)
	}

	var lastErr error
	for _, candidate := range candidates {
		wsURL, err := fetchDebuggerURL(ctx, opts.httpClient(), candidate, opts.Header)
		if err == nil {
			return wsURL, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", &Error{Kind: KindDiscovery, Op: "discover", URL: u.String(), Err: lastErr}
}

func fetchDebuggerURL(ctx context.Context, client *http.Client, target string, header http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status: %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("fetch %s: malformed discovery document", target)
	}

	field := gjson.GetBytes(body, "webSocketDebuggerUrl")
	if field.Type != gjson.String || field.String() == "" {
		return "", fmt.Errorf("fetch %s: %w", target, ErrNoDebuggerURL)
	}

	wsURL, err := url.Parse(field.String())
	if err != nil || (wsURL.Scheme != "ws" && wsURL.Scheme != "wss") {
		return "", fmt.Errorf("fetch %s: invalid webSocketDebuggerUrl %q", target, field.String())
	}
	return field.String(), nil
}
