// Command ghostlink encodes digital video as a composite analog waveform,
// scrambles and descrambles it with a shared key, and serves the result to
// QUIC viewers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/certs"
	"github.com/zsiec/ghostlink/internal/codec"
	"github.com/zsiec/ghostlink/internal/config"
	"github.com/zsiec/ghostlink/internal/container"
	"github.com/zsiec/ghostlink/internal/keystream"
	"github.com/zsiec/ghostlink/internal/media"
	"github.com/zsiec/ghostlink/internal/pipeline"
	"github.com/zsiec/ghostlink/internal/relay"
	"github.com/zsiec/ghostlink/internal/scramble"
)

var version = "dev"

const usage = `ghostlink %s

Usage: ghostlink <command> [flags]

Commands:
  encode      encode raw or pattern video into an ANLG waveform file
  decode      reconstruct raw video from an ANLG waveform file
  scramble    scramble the active video of an ANLG file with a key
  descramble  restore a scrambled ANLG file with the same key
  info        print an ANLG file's metadata and frame count
  serve       broadcast an ANLG file to QUIC viewers

Run "ghostlink <command> -h" for command flags.
`

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, version)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(ctx, os.Args[2:])
	case "decode":
		err = runDecode(ctx, os.Args[2:])
	case "scramble":
		err = runScramble(ctx, os.Args[2:])
	case "descramble":
		err = runDescramble(ctx, os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, usage, version)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// loadConfig resolves the layered configuration: defaults, then the YAML
// file, then any flags the user actually set.
func loadConfig(fs *flag.FlagSet, path string, apply func(set map[string]bool, cfg *config.Config)) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply(set, &cfg)
	return cfg, cfg.Validate()
}

func runEncode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	in := fs.String("in", "pattern", "input raw grayscale file, or \"pattern\" for the test pattern")
	out := fs.String("out", "", "output ANLG file (required)")
	standard := fs.String("standard", "NTSC", "video standard (NTSC or PAL)")
	rate := fs.Int("rate", 0, "sample rate in Hz")
	width := fs.Int("width", 0, "active width in pixels")
	height := fs.Int("height", 0, "active height in pixels")
	bandwidth := fs.Float64("bandwidth", 0, "luminance bandwidth in MHz")
	frames := fs.Int("frames", 60, "frame count for the pattern source")
	noise := fs.Bool("noise", false, "add Gaussian noise to the signal")
	noiseAmp := fs.Float64("noise-amp", 0, "noise amplitude in volts")
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("encode: -out is required")
	}
	cfg, err := loadConfig(fs, *cfgPath, func(set map[string]bool, cfg *config.Config) {
		if set["standard"] {
			cfg.Standard = *standard
		}
		if set["rate"] {
			cfg.SampleRate = *rate
		}
		if set["width"] {
			cfg.Width = *width
		}
		if set["height"] {
			cfg.Height = *height
		}
		if set["bandwidth"] {
			cfg.BandwidthMHz = *bandwidth
		}
		if set["noise"] {
			cfg.Noise.Enabled = *noise
		}
		if set["noise-amp"] {
			cfg.Noise.Amplitude = *noiseAmp
		}
	})
	if err != nil {
		return err
	}

	std, err := analog.ByName(cfg.Standard)
	if err != nil {
		return err
	}
	activeLines := cfg.Height
	if activeLines > std.LinesPerFrame {
		activeLines = std.LinesPerFrame
	}
	enc, err := codec.NewEncoder(codec.EncoderConfig{
		Standard:       std,
		SampleRate:     cfg.SampleRate,
		Width:          cfg.Width,
		ActiveLines:    activeLines,
		BandwidthMHz:   cfg.BandwidthMHz,
		AddNoise:       cfg.Noise.Enabled,
		NoiseAmplitude: cfg.Noise.Amplitude,
		NoiseSeed:      cfg.Noise.Seed,
	})
	if err != nil {
		return err
	}

	var src media.Source
	if *in == "pattern" {
		src = media.NewPatternSource(cfg.Width, cfg.Height, *frames)
	} else {
		src, err = media.OpenRaw(*in, cfg.Width, cfg.Height)
		if err != nil {
			return err
		}
	}
	defer src.Close()

	meta := container.NewMetadata(std, enc.Timing(), cfg.Width, cfg.Height, activeLines, cfg.BandwidthMHz)
	w, err := container.Create(*out, meta)
	if err != nil {
		return err
	}
	defer w.Close()

	slog.Info("encoding", "standard", std.Name, "rate", cfg.SampleRate,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "out", *out)
	start := time.Now()
	n, err := pipeline.Encode(ctx, src, enc, w, pipeline.Options{Progress: 30})
	if err != nil {
		return err
	}
	slog.Info("encode complete", "frames", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func runDecode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	in := fs.String("in", "", "input ANLG file (required)")
	out := fs.String("out", "", "output raw grayscale file (required)")
	analyze := fs.Bool("analyze", false, "log sync statistics per frame")
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("decode: -in and -out are required")
	}
	r, err := container.Open(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	meta := r.Metadata()
	if meta.Scrambled {
		slog.Warn("input is scrambled; decoded video will be unwatchable", "method", meta.ScramblingMethod)
	}
	dec, err := codec.NewDecoder(meta)
	if err != nil {
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("decode: create %s: %w", *out, err)
	}
	defer f.Close()

	slog.Info("decoding", "in", *in, "resolution",
		fmt.Sprintf("%dx%d", meta.Resolution[0], meta.Resolution[1]), "out", *out)
	start := time.Now()

	var n int
	if *analyze {
		n, err = decodeAnalyzing(ctx, r, dec, f)
	} else {
		n, err = pipeline.Decode(ctx, r, dec, f, pipeline.Options{Progress: 30})
	}
	if err != nil {
		return err
	}
	slog.Info("decode complete", "frames", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// decodeAnalyzing is the decode loop with per-frame sync diagnostics.
func decodeAnalyzing(ctx context.Context, r *container.Reader, dec *codec.Decoder, out io.Writer) (int, error) {
	decoded := 0
	for {
		if err := ctx.Err(); err != nil {
			return decoded, err
		}
		samples, err := r.ReadFrame()
		if err == io.EOF {
			return decoded, nil
		}
		if err != nil {
			return decoded, err
		}
		stats := dec.AnalyzeSync(samples)
		slog.Info("sync analysis", "frame", decoded,
			"pulses", stats.SyncPulses, "expected", stats.ExpectedLines,
			"sync_min", stats.SyncLevelMin, "sync_mean", stats.SyncLevelMean,
			"signal_min", stats.SignalMin, "signal_max", stats.SignalMax)

		frame, err := dec.Decode(samples)
		if err != nil {
			return decoded, err
		}
		if _, err := out.Write(frame.Pix); err != nil {
			return decoded, fmt.Errorf("decode: write frame %d: %w", decoded, err)
		}
		decoded++
	}
}

// scrambleKey resolves key material from flags and config.
func scrambleKey(cfg config.Config, keyHex, passphrase string) ([]byte, error) {
	if keyHex != "" {
		cfg.KeyHex = keyHex
		cfg.Passphrase = ""
	} else if passphrase != "" {
		cfg.KeyHex = ""
		cfg.Passphrase = passphrase
	}
	return cfg.Key()
}

func runScramble(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scramble", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	in := fs.String("in", "", "input ANLG file (required)")
	out := fs.String("out", "", "output ANLG file (required)")
	keyHex := fs.String("key", "", "32-byte scrambling key in hex")
	passphrase := fs.String("passphrase", "", "passphrase to derive the key from")
	segments := fs.Int("segments", 0, "segments per line")
	noPerm := fs.Bool("no-permutation", false, "disable segment permutation")
	noInv := fs.Bool("no-inversion", false, "disable amplitude inversion")
	noShift := fs.Bool("no-shift", false, "disable circular shifts")
	workers := fs.Int("workers", 0, "concurrent frame workers")
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("scramble: -in and -out are required")
	}
	cfg, err := loadConfig(fs, *cfgPath, func(set map[string]bool, cfg *config.Config) {
		if set["segments"] {
			cfg.SegmentsPerLine = *segments
		}
		if set["workers"] {
			cfg.Workers = *workers
		}
		if *noPerm {
			cfg.Operations.Permutation = false
		}
		if *noInv {
			cfg.Operations.Inversion = false
		}
		if *noShift {
			cfg.Operations.Shift = false
		}
	})
	if err != nil {
		return err
	}
	key, err := scrambleKey(cfg, *keyHex, *passphrase)
	if err != nil {
		return err
	}

	r, err := container.Open(*in)
	if err != nil {
		return err
	}
	defer r.Close()
	meta := r.Metadata()
	if meta.Scrambled {
		return fmt.Errorf("scramble: %s is already scrambled", *in)
	}

	geo := scramble.Geometry{
		SamplesPerLine:    meta.SamplesPerLine,
		LinesPerFrame:     meta.LinesPerFrame,
		ActiveLines:       meta.ActiveLines,
		SegmentsPerLine:   cfg.SegmentsPerLine,
		SyncEnd:           scramble.DefaultSyncEnd,
		FrontPorchReserve: scramble.DefaultFrontPorchReserve,
	}
	if std, err := analog.ByName(meta.Standard); err == nil {
		if err := geo.CheckTiming(analog.NewTiming(std, meta.SampleRate)); err != nil {
			slog.Warn("scrambling regions disagree with signal timing", "detail", err)
		}
	}

	gen, err := keystream.NewGenerator(key)
	if err != nil {
		return err
	}
	ops := scramble.Operations{
		Permutation: cfg.Operations.Permutation,
		Inversion:   cfg.Operations.Inversion,
		Shift:       cfg.Operations.Shift,
	}
	sc, err := scramble.NewScrambler(geo, gen, meta.VoltageLevels.Levels(), ops)
	if err != nil {
		return err
	}

	outMeta := meta.WithScrambling(scramble.Method, geo.SegmentsPerLine, container.Operations{
		Permutation: ops.Permutation,
		Inversion:   ops.Inversion,
		Shift:       ops.Shift,
	})
	w, err := container.Create(*out, outMeta)
	if err != nil {
		return err
	}
	defer w.Close()

	slog.Info("scrambling", "in", *in, "out", *out,
		"segments", geo.SegmentsPerLine, "keystream", gen.BackendName(),
		"permutation", ops.Permutation, "inversion", ops.Inversion, "shift", ops.Shift)
	start := time.Now()
	n, err := pipeline.Transform(ctx, r, w, sc.ScrambleFrame, pipeline.Options{
		Workers: cfg.Workers, Progress: 30,
	})
	if err != nil {
		return err
	}
	slog.Info("scramble complete", "frames", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func runDescramble(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("descramble", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	in := fs.String("in", "", "input ANLG file (required)")
	out := fs.String("out", "", "output ANLG file (required)")
	keyHex := fs.String("key", "", "32-byte scrambling key in hex")
	passphrase := fs.String("passphrase", "", "passphrase to derive the key from")
	workers := fs.Int("workers", 0, "concurrent frame workers")
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("descramble: -in and -out are required")
	}
	cfg, err := loadConfig(fs, *cfgPath, func(set map[string]bool, cfg *config.Config) {
		if set["workers"] {
			cfg.Workers = *workers
		}
	})
	if err != nil {
		return err
	}
	key, err := scrambleKey(cfg, *keyHex, *passphrase)
	if err != nil {
		return err
	}

	r, err := container.Open(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	gen, err := keystream.NewGenerator(key)
	if err != nil {
		return err
	}
	// Geometry and operations come from the file's own metadata, never from
	// flags; the scrambler recorded what it did.
	de, err := scramble.DescramblerFromMetadata(r.Metadata(), gen)
	if err != nil {
		return err
	}

	w, err := container.Create(*out, r.Metadata().WithDescrambling(scramble.Method))
	if err != nil {
		return err
	}
	defer w.Close()

	slog.Info("descrambling", "in", *in, "out", *out,
		"segments", de.Geometry().SegmentsPerLine, "keystream", gen.BackendName())
	start := time.Now()
	n, err := pipeline.Transform(ctx, r, w, de.DescrambleFrame, pipeline.Options{
		Workers: cfg.Workers, Progress: 30,
	})
	if err != nil {
		return err
	}
	slog.Info("descramble complete", "frames", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("info: exactly one ANLG file expected")
	}
	path := fs.Arg(0)

	r, err := container.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	frames := 0
	for {
		if _, err := r.ReadFrame(); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		frames++
	}

	doc, err := json.MarshalIndent(r.Metadata(), "", "  ")
	if err != nil {
		return fmt.Errorf("info: marshal metadata: %w", err)
	}
	fmt.Printf("%s\n%s\nframes: %d\n", path, doc, frames)
	if fps := r.Metadata().FPS; fps > 0 {
		fmt.Printf("duration: %.2fs\n", float64(frames)/fps)
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	in := fs.String("in", "", "ANLG file to broadcast (required)")
	addr := fs.String("addr", "", "QUIC listen address")
	loop := fs.Bool("loop", false, "restart from the first frame at end of file")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("serve: -in is required")
	}
	cfg, err := loadConfig(fs, *cfgPath, func(set map[string]bool, cfg *config.Config) {
		if set["addr"] {
			cfg.Relay.Addr = *addr
		}
	})
	if err != nil {
		return err
	}

	r, err := container.Open(*in)
	if err != nil {
		return err
	}
	defer r.Close()
	meta := r.Metadata()
	header, err := container.EncodeHeader(meta)
	if err != nil {
		return err
	}

	cert, err := certs.Generate(certs.DefaultValidity)
	if err != nil {
		return err
	}
	slog.Info("certificate generated",
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339))

	hub := relay.NewRelayWithDepth(cfg.Relay.QueueDepth)
	hub.SetHeader(header)
	srv, err := relay.NewServer(relay.ServerConfig{Addr: cfg.Relay.Addr, Cert: cert}, hub)
	if err != nil {
		return err
	}

	interval := time.Second / 30
	if meta.FPS > 0 {
		interval = time.Duration(float64(time.Second) / meta.FPS)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			samples, err := r.ReadFrame()
			if err == io.EOF {
				if !*loop {
					slog.Info("broadcast finished", "frames", hub.FramesBroadcast())
					<-ctx.Done()
					return nil
				}
				r.Close()
				r, err = container.Open(*in)
				if err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			hub.Broadcast(container.EncodeFrame(samples))
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}
