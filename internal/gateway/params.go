package gateway

import (
	"net/url"
	"strconv"
)

// sessionParams are the query parameters parsed off the client's
// connection request: STT model, sample rate, encoding, and end-of-turn
// threshold. They are forwarded unchanged onto the STT provider's own
// WebSocket URL.
type sessionParams struct {
	Model         string
	SampleRate    int
	Encoding      string
	EOTThresholdMs int
}

func parseSessionParams(q url.Values) sessionParams {
	p := sessionParams{
		Model:          q.Get("stt_model"),
		SampleRate:     16000,
		Encoding:       q.Get("encoding"),
		EOTThresholdMs: 500,
	}
	if p.Model == "" {
		p.Model = "default"
	}
	if p.Encoding == "" {
		p.Encoding = "pcm16le"
	}
	if v, err := strconv.Atoi(q.Get("sample_rate")); err == nil && v > 0 {
		p.SampleRate = v
	}
	if v, err := strconv.Atoi(q.Get("eot_threshold_ms")); err == nil && v > 0 {
		p.EOTThresholdMs = v
	}
	return p
}

// sttURL builds the STT provider's dial URL, forwarding the session's
// parsed settings as query parameters.
func (p sessionParams) sttURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("model", p.Model)
	q.Set("sample_rate", strconv.Itoa(p.SampleRate))
	q.Set("encoding", p.Encoding)
	q.Set("eot_threshold_ms", strconv.Itoa(p.EOTThresholdMs))
	u.RawQuery = q.Encode()
	return u.String()
}
