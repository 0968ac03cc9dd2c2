package config

const (
	defaultFramesDir            = "~/.local/share/timelapse/frames"
	defaultVideoDir             = "~/.local/share/timelapse/videos"
	defaultStateDir             = "~/.local/share/timelapse/state"
	defaultLogDir               = "~/.local/share/timelapse/logs"
	defaultCaptureInterval      = 120
	defaultFrameWidth           = 1280
	defaultFrameHeight          = 720
	defaultJPEGQuality          = 90
	defaultCaptureTimeout       = 30
	defaultStreamSecretPath     = "/run/secrets/rtsp_url"
	defaultRTSPTransport        = "tcp"
	defaultFPS                  = 30
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultPreset               = "slower"
	defaultCRF                  = 24
	defaultPixelFormat          = "yuv420p"
	defaultRenderTimeout        = 3600
	defaultServerBind           = "0.0.0.0:5000"
	defaultRangeRenderPerMinute = 6
	defaultRangeRenderBurst     = 2
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults. The thumbnail
// directory is left empty and falls back to the video directory during
// normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			FramesDir: defaultFramesDir,
			VideoDir:  defaultVideoDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Capture: Capture{
			IntervalSeconds:  defaultCaptureInterval,
			Width:            defaultFrameWidth,
			Height:           defaultFrameHeight,
			JPEGQuality:      defaultJPEGQuality,
			TimeoutSeconds:   defaultCaptureTimeout,
			StreamSecretPath: defaultStreamSecretPath,
			RTSPTransport:    defaultRTSPTransport,
		},
		Render: Render{
			FPS:            defaultFPS,
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			Preset:         defaultPreset,
			CRF:            defaultCRF,
			PixelFormat:    defaultPixelFormat,
			TimeoutSeconds: defaultRenderTimeout,
		},
		Server: Server{
			Bind:                 defaultServerBind,
			RangeRenderEnabled:   true,
			RangeRenderPerMinute: defaultRangeRenderPerMinute,
			RangeRenderBurst:     defaultRangeRenderBurst,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
