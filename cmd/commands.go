package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adpcm-xq/internal/audio/adpcm"
	"adpcm-xq/internal/audio/capture"
	"adpcm-xq/internal/audio/codec"
	"adpcm-xq/internal/audio/config"
	"adpcm-xq/internal/audio/encoder"
	"adpcm-xq/internal/audio/packetizer"
	"adpcm-xq/internal/audio/pipeline"
	"adpcm-xq/internal/audio/playback"
	"adpcm-xq/internal/audio/resample"
	"adpcm-xq/internal/audio/wav"

	"github.com/dustin/go-humanize"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var codecFlags = []cli.Flag{
	&cli.IntFlag{Name: "lookahead", Aliases: []string{"l"}, Usage: "search depth in samples (0-8)"},
	&cli.IntFlag{Name: "block-size", Aliases: []string{"b"}, Usage: "block size in bytes (default from rate and channels)"},
	&cli.StringFlag{Name: "metric", Aliases: []string{"m"}, Usage: "squared or absolute"},
	&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "parallel block decoders"},
}

// codecConfig builds the codec config for a stream: defaults, then ADPCM_*
// from the env, then flags.
func codecConfig(c *cli.Context, sampleRate uint32, channels uint16) (config.AudioConfig, error) {
	cfg, err := config.FromEnv(config.NewADPCMConfig(sampleRate, channels))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("lookahead") {
		cfg.Lookahead = c.Int("lookahead")
	}
	if c.IsSet("block-size") {
		cfg.SetBlockSize(c.Int("block-size"))
	}
	if c.IsSet("metric") {
		m, err := adpcm.ParseMetric(c.String("metric"))
		if err != nil {
			return cfg, err
		}
		cfg.Metric = m
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readWave(path string) (*wav.Wave, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w, err := wav.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().
		Str("file", path).
		Uint16("format", w.Header.Format).
		Uint32("sample_rate", w.Header.SampleRate).
		Uint16("channels", w.Header.Channels).
		Uint32("frames", w.Frames).
		Msg("Wave loaded")
	return w, nil
}

func writeWave(path string, w *wav.Wave) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := w.Serialize(f); err != nil {
		f.Close()
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return info.Size(), f.Close()
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func inOutArgs(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", cli.Exit(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

// decodeWave returns the interleaved samples of a PCM or ADPCM wave.
func decodeWave(w *wav.Wave, workers int) ([]int16, int, error) {
	if !w.IsADPCM() {
		pcm, err := w.Samples()
		return pcm, 0, err
	}
	blocks, err := w.Blocks()
	if err != nil {
		return nil, 0, err
	}
	pcm, skipped, err := pipeline.DecodeBlocks(blocks, int(w.Header.Channels), workers)
	if err != nil {
		return nil, 0, err
	}
	// drop the padding of the last block
	if n := int(w.Frames) * int(w.Header.Channels); n > 0 && n < len(pcm) && skipped == 0 {
		pcm = pcm[:n]
	}
	return pcm, skipped, nil
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "encode a 16-bit PCM wave to IMA ADPCM",
		ArgsUsage: "in.wav out.wav",
		Flags: append([]cli.Flag{
			&cli.UintFlag{Name: "rate", Aliases: []string{"r"}, Usage: "resample to this rate before encoding"},
		}, codecFlags...),
		Action: func(c *cli.Context) error {
			in, out, err := inOutArgs(c)
			if err != nil {
				return err
			}
			w, err := readWave(in)
			if err != nil {
				return cli.Exit(err, 1)
			}
			pcm, err := w.Samples()
			if err != nil {
				return cli.Exit(err, 1)
			}
			rate, channels := w.Header.SampleRate, w.Header.Channels

			if target := uint32(c.Uint("rate")); target != 0 && target != rate {
				pcm, err = resample.Resample(pcm, int(channels), rate, target)
				if err != nil {
					return cli.Exit(err, 1)
				}
				log.Info().Uint32("from", rate).Uint32("to", target).Msg("Resampled input")
				rate = target
			}

			cfg, err := codecConfig(c, rate, channels)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if err := codec.Attach(&cfg); err != nil {
				return cli.Exit(err, 1)
			}
			enc := cfg.Encoder.(*encoder.ADPCMEncoder)
			defer enc.Close()

			start := time.Now()
			blocks, err := pipeline.EncodeFrames(cfg.Encoder, pcm, int(channels), cfg.BlockSamples)
			if err != nil {
				return cli.Exit(err, 1)
			}
			elapsed := time.Since(start)

			var data []byte
			for _, b := range blocks {
				data = append(data, b...)
			}
			frames := uint32(len(pcm) / int(channels))
			size, err := writeWave(out, wav.NewADPCM(rate, channels, cfg.BlockSize, cfg.BlockSamples, frames, data))
			if err != nil {
				return cli.Exit(err, 1)
			}

			samples := float64(max(len(pcm), 1))
			avg := float64(enc.Error()) / samples
			if cfg.Metric == adpcm.MetricSquared {
				avg = math.Sqrt(avg)
			}
			fmt.Printf("%s -> %s: %s -> %s (%.2f:1), %s frames in %s blocks, %s\n",
				in, out,
				humanize.Bytes(uint64(fileSize(in))), humanize.Bytes(uint64(size)),
				float64(fileSize(in))/float64(max(size, 1)),
				humanize.Comma(int64(frames)), humanize.Comma(enc.Blocks()),
				elapsed.Round(time.Millisecond))
			fmt.Printf("lookahead %d, %s metric, average error %s per sample\n",
				cfg.Lookahead, cfg.Metric, humanize.FtoaWithDigits(avg, 2))
			return nil
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode an IMA ADPCM wave to 16-bit PCM",
		ArgsUsage: "in.wav out.wav",
		Flags:     codecFlags[3:],
		Action: func(c *cli.Context) error {
			in, out, err := inOutArgs(c)
			if err != nil {
				return err
			}
			w, err := readWave(in)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if !w.IsADPCM() {
				return cli.Exit(fmt.Sprintf("%s: %v: not IMA ADPCM", in, wav.ErrUnsupportedFormat), 1)
			}
			cfg, err := config.FromEnv(config.NewADPCMConfig(w.Header.SampleRate, w.Header.Channels))
			if err != nil {
				return cli.Exit(err, 1)
			}
			if c.IsSet("workers") {
				cfg.Workers = c.Int("workers")
			}

			start := time.Now()
			pcm, skipped, err := decodeWave(w, cfg.Workers)
			if err != nil {
				return cli.Exit(err, 1)
			}
			elapsed := time.Since(start)

			size, err := writeWave(out, wav.NewPCM(w.Header.SampleRate, w.Header.Channels, pcm))
			if err != nil {
				return cli.Exit(err, 1)
			}
			fmt.Printf("%s -> %s: %s -> %s, %s frames, %s\n",
				in, out,
				humanize.Bytes(uint64(fileSize(in))), humanize.Bytes(uint64(size)),
				humanize.Comma(int64(len(pcm)/int(w.Header.Channels))),
				elapsed.Round(time.Millisecond))
			if skipped > 0 {
				fmt.Printf("skipped %d corrupt blocks\n", skipped)
			}
			return nil
		},
	}
}

// forward copies frames to the playback queue; playback never sees a closed
// channel
func forward(ctx context.Context, frames <-chan []int16, mp *playback.MalgoPlayback) {
	for frame := range frames {
		select {
		case mp.InChan <- frame:
		case <-ctx.Done():
		}
	}
	for !mp.Idle() && ctx.Err() == nil {
		time.Sleep(20 * time.Millisecond)
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "play a wave; PCM input is played through the ADPCM codec",
		ArgsUsage: "in.wav",
		Flags:     codecFlags[:3],
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: adpcm-xq play in.wav", 2)
			}
			w, err := readWave(c.Args().First())
			if err != nil {
				return cli.Exit(err, 1)
			}
			cfg, err := codecConfig(c, w.Header.SampleRate, w.Header.Channels)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if w.IsADPCM() {
				cfg.SetBlockSize(int(w.Header.BlockAlign))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			ap, err := pipeline.NewAudioPipeline(cfg)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer ap.Close()

			mp, err := playback.NewMalgoPlayback(cfg)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer mp.Close()
			mp.SetPaused(false)

			packets := make(chan *rtp.Packet, cfg.BufferSize)
			decoded := make(chan []int16, config.JitterBufferSize)
			go ap.StartReceiving(packets, decoded)

			if w.IsADPCM() {
				go sendBlocks(ctx, w, cfg, packets)
			} else {
				pcm, err := w.Samples()
				if err != nil {
					return cli.Exit(err, 1)
				}
				frames := make(chan []int16)
				go ap.StartSending(frames, packets)
				go sendFrames(ctx, pcm, int(cfg.Channels)*cfg.BlockSamples, frames)
			}

			forward(ctx, decoded, mp)
			if ap.Skipped() > 0 {
				log.Warn().Int64("blocks", ap.Skipped()).Msg("Corrupt blocks skipped")
			}
			return nil
		},
	}
}

func sendFrames(ctx context.Context, pcm []int16, stride int, frames chan<- []int16) {
	defer close(frames)
	for start := 0; start < len(pcm); start += stride {
		select {
		case frames <- pcm[start:min(start+stride, len(pcm))]:
		case <-ctx.Done():
			return
		}
	}
}

// sendBlocks feeds the blocks of an ADPCM wave through the RTP wire format.
func sendBlocks(ctx context.Context, w *wav.Wave, cfg config.AudioConfig, packets chan<- *rtp.Packet) {
	defer close(packets)
	blocks, err := w.Blocks()
	if err != nil {
		log.Error().Err(err).Msg("Failed to split blocks")
		return
	}
	params := cfg.CodecParameters()
	pk := packetizer.New(params)
	for _, block := range blocks {
		raw, err := pk.Packetize(block, int(w.Header.SamplesPerBlock)).Marshal()
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal packet")
			return
		}
		payload, header, err := packetizer.Depacketize(raw, uint8(params.PayloadType))
		if err != nil {
			log.Warn().Err(err).Msg("Dropping packet")
			continue
		}
		select {
		case packets <- &rtp.Packet{Header: *header, Payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "record from the default input device to an IMA ADPCM wave",
		ArgsUsage: "out.wav",
		Flags: append([]cli.Flag{
			&cli.Float64Flag{Name: "seconds", Aliases: []string{"s"}, Value: 10, Usage: "recording length in seconds"},
			&cli.UintFlag{Name: "rate", Aliases: []string{"r"}, Value: 22050, Usage: "sample rate"},
			&cli.UintFlag{Name: "channels", Aliases: []string{"c"}, Value: 1, Usage: "channel count"},
		}, codecFlags[:3]...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: adpcm-xq record out.wav", 2)
			}
			out := c.Args().First()
			cfg, err := codecConfig(c, uint32(c.Uint("rate")), uint16(c.Uint("channels")))
			if err != nil {
				return cli.Exit(err, 1)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			length := time.Duration(c.Float64("seconds") * float64(time.Second))
			ctx, cancel := context.WithTimeout(ctx, length)
			defer cancel()

			ap, err := pipeline.NewAudioPipeline(cfg)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer ap.Close()

			mc, err := capture.NewMalgoCapture(cfg)
			if err != nil {
				return cli.Exit(err, 1)
			}

			frames := 0
			counted := pipeline.AddOnPipe(ap.QuitSend, func(pcm []int16) []int16 {
				frames += len(pcm) / int(cfg.Channels)
				return pcm
			}, mc.PcmChan, cfg.BufferSize)
			packets := make(chan *rtp.Packet, cfg.BufferSize)
			go ap.StartSending(counted, packets)

			mc.SetPaused(false)
			log.Info().Str("file", out).Dur("length", length).Msg("Recording")
			go func() {
				<-ctx.Done()
				mc.Close()
				mc.Flush()
				close(mc.PcmChan)
			}()

			var data []byte
			for pkt := range packets {
				data = append(data, pkt.Payload...)
			}
			size, err := writeWave(out, wav.NewADPCM(cfg.SampleRate, cfg.Channels, cfg.BlockSize, cfg.BlockSamples, uint32(frames), data))
			if err != nil {
				return cli.Exit(err, 1)
			}
			fmt.Printf("%s: %s frames in %s blocks, %s\n",
				out, humanize.Comma(int64(frames)), humanize.Comma(ap.Sent()), humanize.Bytes(uint64(size)))
			return nil
		},
	}
}
