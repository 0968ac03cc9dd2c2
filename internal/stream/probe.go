package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
)

// Media summarises one track announced by the stream.
type Media struct {
	Type   string
	Codecs []string
}

// ProbeResult is the outcome of an RTSP DESCRIBE against the stream.
type ProbeResult struct {
	Address string
	Medias  []Media
	Elapsed time.Duration
}

// HasVideo reports whether the stream announced at least one video track.
func (r ProbeResult) HasVideo() bool {
	for _, m := range r.Medias {
		if m.Type == string(description.MediaTypeVideo) {
			return true
		}
	}
	return false
}

// Probe connects to an RTSP address and reads its session description without
// starting playback. The returned address is redacted.
func Probe(ctx context.Context, address, transport string, timeout time.Duration) (ProbeResult, error) {
	result := ProbeResult{Address: Redact(address)}
	u, err := base.ParseURL(address)
	if err != nil {
		return result, fmt.Errorf("%w: parse stream address: %w", ErrCaptureFailed, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := gortsplib.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		Transport:    rtspTransport(transport),
	}
	started := time.Now()
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return result, fmt.Errorf("%w: connect %s: %w", ErrCaptureFailed, result.Address, err)
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, client.Close)
	defer stop()

	desc, _, err := client.Describe(u)
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: describe %s: %w", ErrCaptureFailed, result.Address, ctx.Err())
		}
		return result, fmt.Errorf("%w: describe %s: %w", ErrCaptureFailed, result.Address, err)
	}
	result.Elapsed = time.Since(started)
	for _, media := range desc.Medias {
		entry := Media{Type: string(media.Type)}
		for _, f := range media.Formats {
			entry.Codecs = append(entry.Codecs, f.Codec())
		}
		result.Medias = append(result.Medias, entry)
	}
	return result, nil
}

func rtspTransport(value string) *gortsplib.Transport {
	var t gortsplib.Transport
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "udp":
		t = gortsplib.TransportUDP
	case "tcp", "":
		t = gortsplib.TransportTCP
	default:
		return nil
	}
	return &t
}
