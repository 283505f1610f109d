package media

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vango-go/agents-lite/pkg/core/types"
)

const defaultStatsInterval = 500 * time.Millisecond

// videoDetector turns successive inbound video byte counters into
// start/stop transitions. Video is flowing while the counter grows.
type videoDetector struct {
	playing   bool
	lastBytes uint64
	seen      bool
}

// observe returns the transition caused by stats, if any.
func (d *videoDetector) observe(stats types.VideoStats) (types.VideoState, bool) {
	grew := d.seen && stats.BytesReceived > d.lastBytes
	d.lastBytes = stats.BytesReceived
	d.seen = true

	switch {
	case grew && !d.playing:
		d.playing = true
		return types.VideoStateStart, true
	case !grew && d.playing:
		d.playing = false
		return types.VideoStateStop, true
	}
	return "", false
}

// inboundVideo extracts the inbound video stream statistics from a report.
func inboundVideo(report webrtc.StatsReport) (types.VideoStats, bool) {
	for _, s := range report {
		var inbound *webrtc.InboundRTPStreamStats
		switch v := s.(type) {
		case webrtc.InboundRTPStreamStats:
			inbound = &v
		case *webrtc.InboundRTPStreamStats:
			inbound = v
		}
		if inbound == nil || inbound.Kind != "video" {
			continue
		}
		return types.VideoStats{
			BytesReceived:   inbound.BytesReceived,
			PacketsReceived: inbound.PacketsReceived,
			PacketsLost:     inbound.PacketsLost,
			FramesDecoded:   inbound.FramesDecoded,
			Timestamp:       int64(inbound.Timestamp),
		}, true
	}
	return types.VideoStats{}, false
}

func (s *Session) startStatsPoller(interval time.Duration) {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var detector videoDetector
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			}
			stats, ok := inboundVideo(s.peer.GetStats())
			if !ok {
				continue
			}
			state, changed := detector.observe(stats)
			if !changed || s.ctx.Err() != nil {
				continue
			}
			s.logger.Debug("video state", "state", state, "bytes_received", stats.BytesReceived)
			if s.callbacks.OnVideoStateChange != nil {
				snapshot := stats
				s.callbacks.OnVideoStateChange(state, &snapshot)
			}
		}
	}()
}
