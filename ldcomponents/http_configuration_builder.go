package ldcomponents

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal"
	"github.com/launchdarkly/go-server-sdk-datasync/ldhttp"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// DefaultConnectTimeout is the HTTP connection timeout that is used if HTTPConfigurationBuilder.ConnectTimeout
// is not set.
const DefaultConnectTimeout = 3 * time.Second

// HTTPConfigurationBuilder contains methods for configuring networking behavior.
//
// If you want to set non-default values for any of these properties, create a builder with
// ldcomponents.HTTPConfiguration(), change its properties with the HTTPConfigurationBuilder methods,
// and store it in Config.HTTP:
//
//	config := datasync.Config{
//	    HTTP: ldcomponents.HTTPConfiguration().
//	        ConnectTimeout(3 * time.Second).
//	        ProxyURL(proxyURL),
//	}
type HTTPConfigurationBuilder struct {
	inited            bool
	connectTimeout    time.Duration
	httpClientFactory func() *http.Client
	httpOptions       []ldhttp.TransportOption
	headers           http.Header
	userAgent         string
	wrapperIdentifier string
}

// HTTPConfiguration returns a configuration builder for HTTP configuration.
func HTTPConfiguration() *HTTPConfigurationBuilder {
	return &HTTPConfigurationBuilder{}
}

func (b *HTTPConfigurationBuilder) checkValid() bool {
	if b == nil {
		return false
	}
	if !b.inited {
		b.connectTimeout = DefaultConnectTimeout
		b.headers = make(http.Header)
		b.inited = true
	}
	return true
}

// CACert specifies a CA certificate to be added to the trusted root CA list for HTTPS requests.
func (b *HTTPConfigurationBuilder) CACert(certData []byte) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.httpOptions = append(b.httpOptions, ldhttp.CACertOption(certData))
	}
	return b
}

// CACertFile specifies a CA certificate to be added to the trusted root CA list for HTTPS requests,
// reading the certificate data from a file in PEM format.
func (b *HTTPConfigurationBuilder) CACertFile(filePath string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.httpOptions = append(b.httpOptions, ldhttp.CACertFileOption(filePath))
	}
	return b
}

// ConnectTimeout sets the connection timeout.
//
// This is the maximum amount of time to wait for each individual connection attempt to a remote service
// before determining that that attempt has failed. It is not the same as the waitFor parameter to
// MakeDataSystem, which is the total length of time to wait regardless of how many connection attempts
// are required.
func (b *HTTPConfigurationBuilder) ConnectTimeout(connectTimeout time.Duration) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if connectTimeout <= 0 {
			b.connectTimeout = DefaultConnectTimeout
		} else {
			b.connectTimeout = connectTimeout
		}
	}
	return b
}

// Header specifies a custom HTTP header that should be added to all requests. Repeated calls to
// Header with the same key overwrite previous entries.
func (b *HTTPConfigurationBuilder) Header(key string, value string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.headers.Set(key, value)
	}
	return b
}

// HTTPClientFactory specifies a function for creating each HTTP client instance.
//
// If you use this option, it overrides any other settings that you may have specified with ConnectTimeout,
// CACert, or ProxyURL. Components may modify the client properties after the client is created (for
// instance, to add caching), but will not replace the underlying Transport, and will not modify any
// timeout properties you set.
func (b *HTTPConfigurationBuilder) HTTPClientFactory(httpClientFactory func() *http.Client) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.httpClientFactory = httpClientFactory
	}
	return b
}

// ProxyURL specifies a proxy URL to be used for all requests. This overrides any setting of the
// HTTP_PROXY, HTTPS_PROXY, or NO_PROXY environment variables.
func (b *HTTPConfigurationBuilder) ProxyURL(proxyURL url.URL) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.httpOptions = append(b.httpOptions, ldhttp.ProxyOption(proxyURL))
	}
	return b
}

// UserAgent specifies an additional User-Agent header value to send with HTTP requests.
func (b *HTTPConfigurationBuilder) UserAgent(userAgent string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.userAgent = userAgent
	}
	return b
}

// Wrapper allows wrapper libraries to set an identifying name for the wrapper being used.
//
// This will be sent in the X-LaunchDarkly-Wrapper header.
func (b *HTTPConfigurationBuilder) Wrapper(wrapperName, wrapperVersion string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if wrapperName == "" || wrapperVersion == "" {
			b.wrapperIdentifier = wrapperName
		} else {
			b.wrapperIdentifier = fmt.Sprintf("%s/%s", wrapperName, wrapperVersion)
		}
	}
	return b
}

// Build is called internally by the data system.
func (b *HTTPConfigurationBuilder) Build(
	clientContext subsystems.ClientContext,
) (subsystems.HTTPConfiguration, error) {
	if !b.checkValid() {
		defaults := HTTPConfigurationBuilder{}
		return defaults.Build(clientContext)
	}

	headers := make(http.Header)
	for k, vv := range b.headers {
		headers[k] = append([]string(nil), vv...)
	}
	if key := clientContext.GetSDKKey(); key != "" {
		headers.Set("Authorization", key)
	}
	userAgent := "GoClient/" + internal.SDKVersion
	if b.userAgent != "" {
		userAgent = userAgent + " " + b.userAgent
	}
	headers.Set("User-Agent", userAgent)
	if b.wrapperIdentifier != "" {
		headers.Add("X-LaunchDarkly-Wrapper", b.wrapperIdentifier)
	}

	clientFactory := b.httpClientFactory
	if clientFactory == nil {
		allOpts := []ldhttp.TransportOption{ldhttp.ConnectTimeoutOption(b.connectTimeout)}
		allOpts = append(allOpts, b.httpOptions...)
		transport, _, err := ldhttp.NewHTTPTransport(allOpts...)
		if err != nil {
			return subsystems.HTTPConfiguration{}, err
		}
		connectTimeout := b.connectTimeout
		clientFactory = func() *http.Client {
			return &http.Client{
				Timeout:   connectTimeout,
				Transport: transport,
			}
		}
	}

	return subsystems.HTTPConfiguration{
		DefaultHeaders:   headers,
		CreateHTTPClient: clientFactory,
	}, nil
}
