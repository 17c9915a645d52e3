// Package audioconv decodes uploaded audio into the 16 kHz mono float PCM
// that speech recognizers consume.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const SampleRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	MaxSamples int // 0 = no limit
}

func ConvertFile(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(ctx, f, filepath.Base(path), opt)
}

// Decode picks a decoder from the name's extension, falling back to the
// container magic when the extension is unknown or missing.
func Decode(_ context.Context, r io.ReadSeeker, name string, opt Options) ([]float32, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if format == "" || !known(format) {
		magic, _ := bufio.NewReader(r).Peek(4)
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		switch string(magic) {
		case "RIFF":
			format = "wav"
		case "OggS":
			format = "ogg"
		case "ID3\x03", "ID3\x04":
			format = "mp3"
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
		}
	}

	var (
		x   []float32
		err error
	)
	switch format {
	case "wav":
		x, err = decodeWAV(r)
	case "mp3":
		x, err = decodeMP3(r)
	case "ogg", "oga", "opus":
		x, err = decodeOgg(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

func known(format string) bool {
	switch format {
	case "wav", "mp3", "ogg", "oga", "opus":
		return true
	}
	return false
}

// decodeOgg tries Vorbis first, then Opus.
func decodeOgg(r io.ReadSeeker) ([]float32, error) {
	x, verr := decodeOggVorbis(r)
	if verr == nil {
		return x, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	x, oerr := decodeOggOpus(r)
	if oerr != nil {
		return nil, fmt.Errorf("neither vorbis (%v) nor opus: %w", verr, oerr)
	}
	return x, nil
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intToFloat32(pb.Data, bd)

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return resample(downmix(x, ch), sr, SampleRate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	// go-mp3 always emits 16-bit stereo
	x := downmix(int16ToFloat32(ints), 2)

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return resample(x, sr, SampleRate), nil
}

func decodeOggVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	return resample(downmix(pcm, format.Channels), format.SampleRate, SampleRate), nil
}

func decodeOggOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// opus always decodes at 48k
	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // n = samples per channel
		if n > 0 {
			pcm48 = append(pcm48, int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm48) == 0 {
		return nil, nil
	}
	return resample(downmix(pcm48, ch), 48000, SampleRate), nil
}

func intToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(max(-1.0, min(1.0, float64(v)*scale)))
	}
	return out
}

func int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// resample is linear interpolation; good enough for speech.
func resample(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	for i := range n {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		switch {
		case i0 >= len(in)-1:
			out[i] = in[len(in)-1]
		default:
			a := float32(src - float64(i0))
			out[i] = in[i0]*(1-a) + in[i0+1]*a
		}
	}
	return out
}
