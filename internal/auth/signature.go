// Package auth 实现请求签名校验：X-API-Key + X-Timestamp + X-Signature
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	// DefaultWindow 时间戳允许的偏差（前后各 5 分钟）
	DefaultWindow = 300 * time.Second
)

// Error 认证失败，Reason 原样返回给客户端
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

var (
	ErrMissingHeaders   = &Error{Reason: "Missing authentication headers"}
	ErrInvalidAPIKey    = &Error{Reason: "Invalid API key"}
	ErrRequestExpired   = &Error{Reason: "Request expired"}
	ErrInvalidSignature = &Error{Reason: "Invalid signature"}
)

// Sign 计算签名：sha256(apiKey + path + "?"+rawQuery + timestamp + secret) 的十六进制，
// rawQuery 为空时不带问号，各段之间没有分隔符
func Sign(apiKey, path, rawQuery, timestamp, secret string) string {
	h := sha256.New()
	h.Write([]byte(apiKey))
	h.Write([]byte(path))
	if rawQuery != "" {
		h.Write([]byte("?"))
		h.Write([]byte(rawQuery))
	}
	h.Write([]byte(timestamp))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// SignRequest 客户端用：给请求补上三个认证头
func SignRequest(req *http.Request, apiKey, secret string, at time.Time) {
	ts := strconv.FormatInt(at.Unix(), 10)
	req.Header.Set(HeaderAPIKey, apiKey)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(apiKey, req.URL.Path, req.URL.RawQuery, ts, secret))
}

// Verifier 无状态校验器。没有 nonce 缓存：窗口内原样重放的请求同样会通过
type Verifier struct {
	APIKey string
	Secret string
	Window time.Duration
	Now    func() time.Time
}

func NewVerifier(apiKey, secret string) *Verifier {
	return &Verifier{APIKey: apiKey, Secret: secret, Window: DefaultWindow, Now: time.Now}
}

// Verify 依次检查：请求头齐全、key 正确、时间戳在窗口内、签名正确；遇到第一个失败即返回
func (v *Verifier) Verify(r *http.Request) error {
	key := r.Header.Get(HeaderAPIKey)
	ts := r.Header.Get(HeaderTimestamp)
	sig := r.Header.Get(HeaderSignature)
	if key == "" || ts == "" || sig == "" {
		return ErrMissingHeaders
	}

	if subtle.ConstantTimeCompare([]byte(key), []byte(v.APIKey)) != 1 {
		return ErrInvalidAPIKey
	}

	sent, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrRequestExpired
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	window := v.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if math.Abs(float64(now().Unix()-sent)) > window.Seconds() {
		return ErrRequestExpired
	}

	want := Sign(key, r.URL.Path, r.URL.RawQuery, ts, v.Secret)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
