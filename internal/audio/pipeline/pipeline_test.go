package pipeline

import (
	"math"
	"slices"
	"testing"
	"time"

	"adpcm-xq/internal/audio/adpcm"
	"adpcm-xq/internal/audio/config"
	"adpcm-xq/internal/audio/decoder"
	"adpcm-xq/internal/audio/encoder"

	"github.com/pion/rtp"
)

func testTone(frames, channels int) []int16 {
	pcm := make([]int16, frames*channels)
	for i := range pcm {
		pcm[i] = int16(10000 * math.Sin(float64(i)*0.013))
	}
	return pcm
}

func TestAddOnPipe(t *testing.T) {
	q := make(chan struct{})
	defer close(q)
	in := make(chan int)
	out := AddOnPipe(q, func(x int) int { return x * 2 }, in, 4)

	go func() {
		for i := 1; i <= 3; i++ {
			in <- i
		}
		close(in)
	}()
	var got []int
	for v := range out {
		got = append(got, v)
	}
	if !slices.Equal(got, []int{2, 4, 6}) {
		t.Errorf("AddOnPipe output = %v", got)
	}
}

func TestEncodeDecodeBlocks(t *testing.T) {
	cfg := config.NewADPCMConfig(8000, 2)
	enc, err := encoder.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	frames := 3*cfg.BlockSamples + 40
	pcm := testTone(frames, 2)

	blocks, err := EncodeFrames(enc, pcm, 2, cfg.BlockSamples)
	if err != nil {
		t.Fatalf("EncodeFrames: %v", err)
	}
	if len(blocks) != 4 {
		t.Fatalf("EncodeFrames produced %d blocks, want 4", len(blocks))
	}

	sequential := make([]int16, 0, len(pcm))
	dec := decoder.NewADPCMDecoder(2)
	for _, b := range blocks {
		out, err := dec.Decode(b)
		if err != nil {
			t.Fatal(err)
		}
		sequential = append(sequential, out...)
	}

	for _, workers := range []int{1, 3, 8} {
		parallel, skipped, err := DecodeBlocks(blocks, 2, workers)
		if err != nil {
			t.Fatalf("DecodeBlocks: %v", err)
		}
		if skipped != 0 {
			t.Errorf("skipped %d blocks", skipped)
		}
		if !slices.Equal(parallel, sequential) {
			t.Fatalf("workers=%d: parallel decode differs from sequential decode", workers)
		}
	}
	// the padded tail holds 41 frames
	if want := 2 * (3*cfg.BlockSamples + 41); len(sequential) != want {
		t.Errorf("decoded %d samples, want %d", len(sequential), want)
	}

	blocks[1] = slices.Clone(blocks[1])
	blocks[1][3] = 7
	out, skipped, err := DecodeBlocks(blocks, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 || len(out) != len(sequential)-2*cfg.BlockSamples {
		t.Errorf("corrupt block: skipped %d, %d samples", skipped, len(out))
	}

	if _, _, err := DecodeBlocks(blocks, 2, 0); err == nil {
		t.Error("DecodeBlocks accepted zero workers")
	}
}

func TestPipelineSendReceive(t *testing.T) {
	cfg := config.NewADPCMConfig(48000, 1)
	cfg.SetBlockSize(256)
	sender, err := NewAudioPipeline(cfg)
	if err != nil {
		t.Fatalf("NewAudioPipeline: %v", err)
	}
	defer sender.Close()
	receiver, err := NewAudioPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer receiver.Close()

	frames := make(chan []int16, 4)
	packets := make(chan *rtp.Packet, 4)
	go sender.StartSending(frames, packets)

	pcm := testTone(cfg.BlockSamples*3, 1)
	for i := 0; i < 3; i++ {
		frames <- pcm[i*cfg.BlockSamples : (i+1)*cfg.BlockSamples]
	}
	close(frames)

	var pkts []*rtp.Packet
	for pkt := range packets {
		pkts = append(pkts, pkt)
	}
	if len(pkts) != 3 || sender.Sent() != 3 {
		t.Fatalf("sent %d packets, counter %d", len(pkts), sender.Sent())
	}

	// corrupt the second block in flight
	bad := *pkts[1]
	bad.Payload = slices.Clone(bad.Payload)
	bad.Payload[2] = adpcm.MaxIndex + 1

	in := make(chan *rtp.Packet, 3)
	in <- pkts[0]
	in <- &bad
	in <- pkts[2]
	close(in)

	out := make(chan []int16, 4)
	go receiver.StartReceiving(in, out)

	var got [][]int16
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case frame, ok := <-out:
			if !ok {
				done = true
				break
			}
			got = append(got, frame)
		case <-timeout:
			t.Fatal("timed out waiting for decoded frames")
		}
	}
	if len(got) != 2 || receiver.Skipped() != 1 {
		t.Fatalf("received %d frames, skipped %d; want 2 and 1", len(got), receiver.Skipped())
	}
	if got[0][0] != pcm[0] || got[1][0] != pcm[2*cfg.BlockSamples] {
		t.Errorf("frames do not start at their block's first sample")
	}
}
