package r2s3

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

// DefaultRegion is what R2 and most self-hosted stores accept.
const DefaultRegion = "auto"

const (
	amzTimeFormat = "20060102T150405Z"
	amzDateFormat = "20060102"
	maxErrorBody  = 8 << 10
)

// Config addresses an S3-compatible bucket with path-style requests.
type Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Timeout bounds one upload. Zero means two minutes.
	Timeout time.Duration
}

// Client uploads telemetry files with SigV4-signed PUTs.
type Client struct {
	base   *url.URL
	bucket string
	sig    signer
	hc     *http.Client
	now    func() time.Time
}

func New(cfg Config) (*Client, error) {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"endpoint", cfg.Endpoint},
		{"bucket", cfg.Bucket},
		{"access key", cfg.AccessKeyID},
		{"secret key", cfg.SecretAccessKey},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("archive config: missing %s", strings.Join(missing, ", "))
	}

	raw := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("archive endpoint: %w", err)
	}
	if base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("archive endpoint %q: want http(s)://host", raw)
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = DefaultRegion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		base:   base,
		bucket: strings.TrimSpace(cfg.Bucket),
		sig: signer{
			keyID:  strings.TrimSpace(cfg.AccessKeyID),
			secret: strings.TrimSpace(cfg.SecretAccessKey),
			region: region,
		},
		hc:  &http.Client{Timeout: timeout},
		now: time.Now,
	}, nil
}

// Endpoint is the normalized base URL.
func (c *Client) Endpoint() string { return c.base.String() }

// PutFile uploads localPath under objectKey, tagging it with the telemetry
// metadata derived from the key.
func (c *Client) PutFile(ctx context.Context, objectKey, localPath string) error {
	obj, err := Describe(objectKey)
	if err != nil {
		return err
	}
	return c.Put(ctx, obj, localPath)
}

// Put uploads localPath as obj.
func (c *Client) Put(ctx context.Context, obj Object, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	size, sum, err := digestFile(f)
	if err != nil {
		return fmt.Errorf("hash %s: %w", localPath, err)
	}

	u := *c.base
	u.Path = "/" + c.bucket + "/" + obj.Key
	u.RawPath = "/" + url.PathEscape(c.bucket) + "/" + escapeKey(obj.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), f)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", obj.ContentType)
	for k, v := range obj.Meta {
		req.Header.Set("x-amz-meta-"+k, v)
	}
	c.sig.sign(req, sum, c.now().UTC())

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("put %s: status=%d body=%s", obj.Key, resp.StatusCode, strings.TrimSpace(string(body)))
}

// digestFile returns the size and hex SHA-256 of f and rewinds it.
func digestFile(f *os.File) (int64, string, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, "", err
	}
	if !st.Mode().IsRegular() {
		return 0, "", errors.New("not a regular file")
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, "", err
	}
	return st.Size(), hex.EncodeToString(h.Sum(nil)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// signer adds AWS SigV4 headers for the s3 service. Every x-amz-* header
// present on the request is signed along with host.
type signer struct {
	keyID  string
	secret string
	region string
}

func (s signer) sign(req *http.Request, payloadHash string, at time.Time) {
	stamp := at.Format(amzTimeFormat)
	day := at.Format(amzDateFormat)
	req.Header.Set("x-amz-date", stamp)
	req.Header.Set("x-amz-content-sha256", payloadHash)

	headers := map[string]string{"host": req.URL.Host}
	for name, vals := range req.Header {
		if n := strings.ToLower(name); strings.HasPrefix(n, "x-amz-") {
			headers[n] = strings.TrimSpace(strings.Join(vals, ","))
		}
	}
	names := make([]string, 0, len(headers))
	for n := range headers {
		names = append(names, n)
	}
	sort.Strings(names)

	var canon strings.Builder
	for _, n := range names {
		canon.WriteString(n + ":" + headers[n] + "\n")
	}
	signed := strings.Join(names, ";")

	creq := strings.Join([]string{
		req.Method,
		req.URL.EscapedPath(),
		req.URL.RawQuery,
		canon.String(),
		signed,
		payloadHash,
	}, "\n")
	scope := day + "/" + s.region + "/s3/aws4_request"
	toSign := "AWS4-HMAC-SHA256\n" + stamp + "\n" + scope + "\n" + sha256Hex([]byte(creq))
	sig := hex.EncodeToString(hmacSHA256(deriveSigningKey(s.secret, day, s.region, "s3"), []byte(toSign)))

	req.Header.Set("Authorization", fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.keyID, scope, signed, sig))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func deriveSigningKey(secret, date, region, service string) []byte {
	k := []byte("AWS4" + secret)
	for _, part := range []string{date, region, service, "aws4_request"} {
		k = hmacSHA256(k, []byte(part))
	}
	return k
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}
