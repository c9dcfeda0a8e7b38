package capture

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

const defaultFramerate = 15

// Quality selects a row of the codec tables.
type Quality int

const (
	QualityHigh Quality = iota
	QualityMedium
	QualityLow
)

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "high"
	case QualityLow:
		return "low"
	default:
		return "medium"
	}
}

// ParseQuality accepts high/medium/low and the 高/中/低 labels older task
// files carry. Unknown values select medium.
func ParseQuality(value string) Quality {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high", "高":
		return QualityHigh
	case "low", "低":
		return QualityLow
	default:
		return QualityMedium
	}
}

// Input describes where the grab comes from.
type Input struct {
	Platform string
	Display  string
	Geometry Geometry
}

// BuildArgs assembles the ffmpeg argument list, excluding the binary.
func BuildArgs(task taskconfig.Task, in Input, output string) ([]string, error) {
	framerate := task.Framerate
	if framerate <= 0 {
		framerate = defaultFramerate
	}
	fps := strconv.Itoa(framerate)
	geom := in.Geometry
	size := fmt.Sprintf("%dx%d", geom.Width, geom.Height)
	audio := audioDevice(task.AudioDevice)

	args := []string{"-y"}
	switch in.Platform {
	case "windows":
		args = append(args,
			"-f", "gdigrab",
			"-framerate", fps,
			"-offset_x", strconv.Itoa(geom.X),
			"-offset_y", strconv.Itoa(geom.Y),
			"-video_size", size,
			"-i", "desktop",
		)
		if audio != "" {
			args = append(args, "-f", "dshow", "-i", "audio="+audio)
		}
	case "linux":
		display := strings.TrimSpace(in.Display)
		if display == "" {
			display = ":0.0"
		}
		args = append(args,
			"-f", "x11grab",
			"-framerate", fps,
			"-video_size", size,
			"-i", fmt.Sprintf("%s+%d,%d", display, geom.X, geom.Y),
		)
		if audio != "" {
			args = append(args, "-f", "pulse", "-i", audio)
		}
	case "darwin":
		audioSpec := "none"
		if audio != "" {
			audioSpec = audio
		}
		args = append(args,
			"-f", "avfoundation",
			"-framerate", fps,
			"-capture_cursor", "1",
			"-i", fmt.Sprintf("Capture screen %d:%s", task.MonitorIndex, audioSpec),
		)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "capture", "build args",
			fmt.Sprintf("unsupported platform %q", in.Platform), nil)
	}

	if audio != "" {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}

	if width, height, ok, err := parseResolution(task.Resolution); err != nil {
		return nil, err
	} else if ok {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", width, height))
	}

	args = append(args, codecArgs(task.VideoCodec, ParseQuality(task.RecordQuality))...)
	args = append(args, output)
	return args, nil
}

// codecArgs returns constant-quality encoder settings per codec and quality.
func codecArgs(codec string, q Quality) []string {
	pick := func(values [3]string) string { return values[q] }
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "h264":
		return []string{
			"-c:v", "libx264",
			"-crf", pick([3]string{"18", "25", "32"}),
			"-preset", pick([3]string{"medium", "veryfast", "veryfast"}),
			"-pix_fmt", "yuv420p",
		}
	case "h265":
		return []string{
			"-c:v", "libx265",
			"-crf", pick([3]string{"20", "28", "36"}),
			"-preset", pick([3]string{"medium", "veryfast", "veryfast"}),
			"-pix_fmt", "yuv420p",
			"-tag:v", "hvc1",
		}
	case "vp9":
		return []string{
			"-c:v", "libvpx-vp9",
			"-crf", pick([3]string{"19", "28", "37"}),
			"-b:v", "0",
			"-speed", pick([3]string{"1", "2", "4"}),
			"-row-mt", "1",
			"-pix_fmt", "yuv420p",
		}
	case "av1":
		return []string{
			"-c:v", "libaom-av1",
			"-crf", pick([3]string{"20", "29", "38"}),
			"-b:v", "0",
			"-cpu-used", pick([3]string{"3", "5", "8"}),
			"-pix_fmt", "yuv420p",
		}
	default:
		return []string{"-c:v", "libx264", "-crf", "25", "-preset", "veryfast", "-pix_fmt", "yuv420p"}
	}
}

// audioDevice treats empty, "none" and "无音频" as no audio input.
func audioDevice(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "", "none", "无音频":
		return ""
	}
	return trimmed
}

func parseResolution(value string) (int, int, bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" || trimmed == "window" || !strings.Contains(trimmed, "x") {
		return 0, 0, false, nil
	}
	parts := strings.SplitN(trimmed, "x", 2)
	width, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, false, services.Wrap(services.ErrValidation, "capture", "parse resolution",
			fmt.Sprintf("invalid resolution %q (want WIDTHxHEIGHT or window)", value), nil)
	}
	return width, height, true, nil
}

// OutputName returns webVideos_<start>.<format> with ':' and ' ' made
// filename safe.
func OutputName(task taskconfig.Task) string {
	start := strings.TrimSpace(task.StartTime)
	if start == "" {
		start = "record"
	}
	safe := strings.NewReplacer(":", "-", " ", "_").Replace(start)
	format := strings.TrimPrefix(strings.TrimSpace(task.VideoFormat), ".")
	if format == "" {
		format = "mkv"
	}
	return fmt.Sprintf("webVideos_%s.%s", safe, format)
}

// OutputPath joins the save directory with OutputName.
func OutputPath(task taskconfig.Task) string {
	dir := strings.TrimSpace(task.SavePath)
	if dir == "" {
		dir = "./videos"
	}
	return filepath.Join(dir, OutputName(task))
}
