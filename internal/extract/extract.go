// Package extract parses CS2 demo files and writes per-player audio files
// containing voice data, decoding Steam's proprietary voice-chat format via
// internal/voice and falling back to direct Opus for the older wire format.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	dem "github.com/markus-wa/demoinfocs-golang/v4/pkg/demoinfocs"
	"github.com/markus-wa/demoinfocs-golang/v4/pkg/demoinfocs/msgs2"

	"github.com/demostf/steamvoice/internal/decoder"
	"github.com/demostf/steamvoice/internal/voice"
)

// Default audio parameters for decoding CS2 demo voice data.
const (
	// defaultOpusSampleRate is the sample rate (Hz) for the legacy direct-Opus voice format.
	defaultOpusSampleRate = 48000
	// defaultNumChannels is the number of audio channels (mono audio).
	defaultNumChannels = 1
	// legacyBitDepth is the bit depth for WAV files produced by the legacy float32 Opus path.
	legacyBitDepth = 32
	// steamBitDepth is the bit depth for WAV files produced by the steam codec path: the
	// core already emits int16, so no float32 rescale is needed.
	steamBitDepth = 16
	// intPCMMaxValue rescales the legacy decoder's float32 [-1,1] samples to int32 PCM.
	intPCMMaxValue = 2147483647
	// scratchSamples is the per-Decode output buffer size, large enough for any single
	// CS2 voice message in practice. Grounded in original_source/examples/demo_voice.rs's
	// fixed, reusable 8192-sample output buffer.
	scratchSamples = 8192

	steamCodecName = "steam"
)

// Common error types for the extraction process.
var (
	// ErrNoVoiceData is returned when no voice data is found in the demo.
	ErrNoVoiceData = errors.New("no voice data found in demo")

	// ErrInvalidFormat is returned when an unsupported output format is specified.
	ErrInvalidFormat = errors.New("invalid audio format")

	// ErrFFMPEGNotFound is returned when ffmpeg is not available for conversion.
	ErrFFMPEGNotFound = errors.New("ffmpeg not found")

	supportedFormats = []string{"wav", "mp3", "ogg", "flac", "aac", "m4a"}
)

// Config holds all configuration for one extraction run.
type Config struct {
	// DemoPath is the path to the CS2 demo file.
	DemoPath string

	// OutputDir is the directory where extracted audio files will be saved.
	OutputDir string

	// ForceOverwrite determines whether existing files should be overwritten.
	ForceOverwrite bool

	// PlayerIDs is an optional slice of SteamID64s to filter by. If empty,
	// all players' voice data is extracted.
	PlayerIDs []string

	// Format specifies the output audio format (wav, mp3, ogg, etc.). Empty defaults to "wav".
	Format string

	// MetricsAddr, if non-empty, serves Prometheus decoder metrics on this address
	// for the duration of the run.
	MetricsAddr string

	// LiveAddr, if non-empty, starts a WebSocket server fanning out decoded PCM
	// frames as they are produced.
	LiveAddr string

	// DumpRawDir, if non-empty, archives each player's raw sub-packet stream
	// as zstd-compressed files in this directory.
	DumpRawDir string
}

// ExtractVoiceData is a simple entry point around Run: parse a demo, decode voice
// data for the (optionally filtered) players, and write one WAV file per player to
// outputDir.
func ExtractVoiceData(demoPath, outputDir string, force bool, playerIDs []string) error {
	return Run(Config{
		DemoPath:       demoPath,
		OutputDir:      outputDir,
		ForceOverwrite: force,
		PlayerIDs:      playerIDs,
	})
}

func validateFormat(format string) error {
	for _, f := range supportedFormats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("%w: '%s' (supported formats: %s)",
		ErrInvalidFormat, format, strings.Join(supportedFormats, ", "))
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// sanitizeFilename removes or replaces characters that are unsafe for filenames
// across platforms.
func sanitizeFilename(name string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, " .")
	if sanitized == "" {
		return "player"
	}
	return sanitized
}

func checkOutputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path exists but is not a directory: %s", dir)
	}

	testFile := filepath.Join(dir, ".steamvoice-write-test")
	if err := os.WriteFile(testFile, []byte{}, 0644); err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}

// playerState tracks everything the extraction loop accumulates for one player
// across the whole demo.
type playerState struct {
	samples    []int16        // decoded steam-codec PCM, 16-bit
	sampleRate uint16         // last rate announced for this player's stream
	legacy     [][]byte       // raw payloads for the legacy direct-Opus format
	decoder    *voice.Decoder // one stateful decoder per player, per §4.2
	capture    *rawCapture
}

// defaultSteamSampleRate is used only if a player's stream produced samples
// without ever announcing a rate. Opus data before a rate fails with
// ErrNoSampleRate, so this only happens for streams made of Silence runs alone.
const defaultSteamSampleRate = 24000

// Run parses cfg.DemoPath and writes one audio file per player containing their
// decoded voice data, per cfg.Format.
func Run(cfg Config) error {
	runID := uuid.New().String()
	log := slog.With("run", runID)

	if cfg.DemoPath == "" {
		return fmt.Errorf("demo path is required")
	}
	if cfg.OutputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.OutputDir = cwd
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "wav"
	} else if err := validateFormat(format); err != nil {
		return err
	}

	playerFilter := make(map[string]bool, len(cfg.PlayerIDs))
	for _, id := range cfg.PlayerIDs {
		playerFilter[id] = true
	}
	foundPlayers := make(map[string]bool)

	var metrics *PromMetrics
	if cfg.MetricsAddr != "" {
		metrics = NewPromMetrics()
		go func() {
			if err := serveMetrics(cfg.MetricsAddr); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	var sink *liveSink
	if cfg.LiveAddr != "" {
		sink = newLiveSink()
		go func() {
			if err := sink.listenAndServe(cfg.LiveAddr); err != nil {
				log.Error("live sink server stopped", "error", err)
			}
		}()
	}

	log.Debug("opening demo file", "path", cfg.DemoPath)
	file, err := os.Open(cfg.DemoPath)
	if err != nil {
		return fmt.Errorf("failed to open demo file '%s': %w", cfg.DemoPath, err)
	}
	defer file.Close()

	parser := dem.NewParser(file)
	defer parser.Close()

	players := make(map[string]*playerState)
	codec := "" // set from the demo's VoiceInit announcement; "" means unannounced

	playerOf := func(id string) *playerState {
		ps, ok := players[id]
		if !ok {
			ps = &playerState{}
			players[id] = ps
		}
		return ps
	}

	parser.RegisterNetMessageHandler(func(m *msgs2.CSVCMsg_VoiceInit) {
		codec = m.GetCodec()
		log.Debug("voice init announced", "codec", codec)
	})

	parser.RegisterNetMessageHandler(func(m *msgs2.CSVCMsg_VoiceData) {
		steamID := strconv.FormatUint(m.GetXuid(), 10)
		ps := playerOf(steamID)

		if codec == steamCodecName {
			decodeSteamMessage(log, ps, steamID, m.Audio.VoiceData, metrics, sink)
			if cfg.DumpRawDir != "" {
				captureRaw(log, cfg.DumpRawDir, steamID, ps, m.Audio.VoiceData)
			}
			return
		}

		if m.Audio.Format.String() == "VOICEDATA_FORMAT_OPUS" {
			ps.legacy = append(ps.legacy, m.Audio.VoiceData)
		}
	})

	if err := parser.ParseToEnd(); err != nil {
		switch {
		case errors.Is(err, dem.ErrCancelled):
			return fmt.Errorf("parsing was cancelled: %w", err)
		case errors.Is(err, dem.ErrUnexpectedEndOfDemo):
			return fmt.Errorf("demo file ended unexpectedly (may be corrupt): %w", err)
		case errors.Is(err, dem.ErrInvalidFileType):
			return fmt.Errorf("invalid demo file type: %w", err)
		default:
			return fmt.Errorf("unknown error parsing demo: %w", err)
		}
	}

	for _, ps := range players {
		if ps.capture != nil {
			ps.capture.Close()
		}
	}

	if len(players) == 0 {
		return ErrNoVoiceData
	}

	if err := checkOutputDirectory(cfg.OutputDir); err != nil {
		return fmt.Errorf("output directory issue: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "steamvoice-"+runID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	for playerID, ps := range players {
		if len(playerFilter) > 0 && !playerFilter[playerID] {
			continue
		}
		if playerFilter[playerID] {
			foundPlayers[playerID] = true
		}

		if len(ps.samples) == 0 && len(ps.legacy) == 0 {
			continue
		}

		safeID := sanitizeFilename(playerID)
		var tempWavPath, finalOutputPath string
		if format == "wav" {
			finalOutputPath = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s.wav", safeID))
			tempWavPath = finalOutputPath
		} else {
			tempWavPath = filepath.Join(tempDir, fmt.Sprintf("%s.wav", safeID))
			finalOutputPath = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s.%s", safeID, format))
		}

		if _, err := os.Stat(finalOutputPath); err == nil && !cfg.ForceOverwrite {
			log.Warn("file already exists, skipping", "path", finalOutputPath)
			continue
		}

		var writeErr error
		switch {
		case len(ps.samples) > 0:
			rate := ps.sampleRate
			if rate == 0 {
				rate = defaultSteamSampleRate
			}
			writeErr = writeSteamWav(ps.samples, int(rate), tempWavPath)
		default:
			writeErr = opusToWav(ps.legacy, tempWavPath)
		}
		if writeErr != nil {
			log.Error("failed to write WAV file", "player", playerID, "error", writeErr)
			continue
		}

		if format != "wav" {
			if err := convertAudioToFormat(tempWavPath, finalOutputPath, format); err != nil {
				log.Error("failed to convert audio format", "player", playerID, "format", format, "error", err)
				continue
			}
		}
		log.Debug("audio file created successfully", "player", playerID, "path", finalOutputPath)
	}

	if len(playerFilter) > 0 && len(foundPlayers) < len(playerFilter) {
		for id := range playerFilter {
			if !foundPlayers[id] {
				log.Warn("requested player not found in demo", "player", id)
			}
		}
	}

	log.Debug("extraction complete", "demo", cfg.DemoPath, "outputDir", cfg.OutputDir, "format", format)
	return nil
}

// decodeSteamMessage decodes one CSVCMsg_VoiceData payload through the steam
// codec, appending the produced samples to ps.samples and publishing them to
// the live sink if one is running. Decode failures are logged and the message
// is skipped; they do not abort the run.
func decodeSteamMessage(log *slog.Logger, ps *playerState, playerID string, payload []byte, metrics *PromMetrics, sink *liveSink) {
	if ps.decoder == nil {
		ps.decoder = voice.NewDecoder()
		if metrics != nil {
			ps.decoder.Metrics = metrics
		}
	}

	p, err := voice.Parse(payload)
	if err != nil {
		log.Warn("dropping voice payload: parse failed", "player", playerID, "error", err)
		return
	}

	var scratch [scratchSamples]int16
	n, err := ps.decoder.Decode(p, scratch[:])
	if err != nil {
		log.Warn("dropping voice payload: decode failed", "player", playerID, "error", err)
		return
	}

	ps.samples = append(ps.samples, scratch[:n]...)
	ps.sampleRate = ps.decoder.SampleRate()
	if sink != nil {
		sink.publish(playerID, scratch[:n])
	}
}

func captureRaw(log *slog.Logger, dir, playerID string, ps *playerState, payload []byte) {
	if ps.capture == nil {
		rc, err := newRawCapture(dir, playerID)
		if err != nil {
			log.Error("failed to open raw capture file", "player", playerID, "error", err)
			return
		}
		ps.capture = rc
	}
	if err := ps.capture.write(payload); err != nil {
		log.Error("failed to write raw capture", "player", playerID, "error", err)
	}
}

// convertAudioToFormat uses ffmpeg to convert a WAV file to the specified format.
func convertAudioToFormat(wavPath, outputPath, format string) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("%w: %v", ErrFFMPEGNotFound, err)
	}

	cmd := exec.Command("ffmpeg",
		"-i", wavPath,
		"-y",
		"-loglevel", "error",
		"-hide_banner",
		outputPath)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	slog.Debug("converting audio", "from", wavPath, "to", outputPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w: %s", err, stderr.String())
	}
	return nil
}

// writeSteamWav writes already-decoded 16-bit PCM samples from the steam
// codec path to a mono WAV file. Unlike the legacy path, no float32-to-int
// rescale is needed: internal/voice already emits int16.
func writeSteamWav(samples []int16, sampleRate int, fileName string) error {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(s)
	}

	outFile, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer outFile.Close()

	enc := wav.NewEncoder(outFile, sampleRate, steamBitDepth, defaultNumChannels, 1)
	buf := &audio.IntBuffer{
		Data: out,
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: defaultNumChannels,
		},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return enc.Close()
}

// opusToWav decodes the legacy direct-Opus voice format and writes the result
// to a WAV file. This is the format CS2 used before switching to the steam
// codec; kept for demos recorded against older servers.
func opusToWav(data [][]byte, wavName string) error {
	opusDecoder, err := decoder.NewDecoder(defaultOpusSampleRate, defaultNumChannels)
	if err != nil {
		return fmt.Errorf("failed to initialize OpusDecoder: %w", err)
	}
	var pcmBuffer []int
	for _, d := range data {
		pcm, err := decoder.Decode(opusDecoder, d)
		if err != nil {
			slog.Warn("failed to decode legacy Opus data", "error", err)
			continue
		}
		pp := make([]int, len(pcm))
		for i, p := range pcm {
			pp[i] = int(p * intPCMMaxValue)
		}
		pcmBuffer = append(pcmBuffer, pp...)
	}

	file, err := os.Create(wavName)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer file.Close()

	enc := wav.NewEncoder(file, defaultOpusSampleRate, legacyBitDepth, defaultNumChannels, 1)
	defer enc.Close()
	buffer := &audio.IntBuffer{
		Data: pcmBuffer,
		Format: &audio.Format{
			SampleRate:  defaultOpusSampleRate,
			NumChannels: defaultNumChannels,
		},
	}
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}
