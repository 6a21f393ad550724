package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is what the output device is opened with.
func DefaultFormat() Format {
	return Format{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
	}
}

// FrameSize returns the bytes per frame (one sample for every channel).
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

// Duration returns the play time of n bytes.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.FrameSize() == 0 {
		return 0
	}
	frames := n / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks the format is one we can play.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", f.BitDepth)
	}
	return nil
}

// Clip is decoded audio ready for the output device.
type Clip struct {
	Format Format
	Data   []byte
}

// Duration returns the clip's play time.
func (c Clip) Duration() time.Duration {
	return c.Format.Duration(len(c.Data))
}

// Validate checks the clip's format and that its data is frame aligned.
func (c Clip) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClip, err)
	}
	if len(c.Data) == 0 {
		return fmt.Errorf("%w: empty PCM data", ErrInvalidClip)
	}
	if len(c.Data)%c.Format.FrameSize() != 0 {
		return fmt.Errorf("%w: PCM data length %d is not aligned to %d-byte frames",
			ErrInvalidClip, len(c.Data), c.Format.FrameSize())
	}
	return nil
}

func samples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func pack(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Downmix averages stereo frames into mono. Mono clips are returned as is.
func Downmix(c Clip) Clip {
	if c.Format.Channels != 2 {
		return c
	}
	in := samples(c.Data)
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16((int32(in[2*i]) + int32(in[2*i+1])) / 2)
	}
	f := c.Format
	f.Channels = 1
	return Clip{Format: f, Data: pack(out)}
}

// Resample converts c to sampleRate with linear interpolation, which is
// plenty for speech.
func Resample(c Clip, sampleRate int) (Clip, error) {
	if sampleRate <= 0 {
		return Clip{}, errors.New("target sample rate must be positive")
	}
	if c.Format.BitDepth != 16 {
		return Clip{}, fmt.Errorf("bit depth conversion not supported: %d", c.Format.BitDepth)
	}
	if c.Format.SampleRate == sampleRate {
		return c, nil
	}

	ch := c.Format.Channels
	in := samples(c.Data)
	inFrames := len(in) / ch
	ratio := float64(sampleRate) / float64(c.Format.SampleRate)
	outFrames := int(float64(inFrames) * ratio)

	out := make([]int16, outFrames*ch)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := pos - float64(idx)

		for k := 0; k < ch; k++ {
			if idx >= inFrames-1 {
				out[i*ch+k] = in[(inFrames-1)*ch+k]
				continue
			}
			a := float64(in[idx*ch+k])
			b := float64(in[(idx+1)*ch+k])
			out[i*ch+k] = int16(a*(1-frac) + b*frac)
		}
	}

	f := c.Format
	f.SampleRate = sampleRate
	return Clip{Format: f, Data: pack(out)}, nil
}

// Convert brings c into format target, downmixing and resampling as needed.
func Convert(c Clip, target Format) (Clip, error) {
	if err := c.Validate(); err != nil {
		return Clip{}, err
	}
	if c.Format.Channels == 2 && target.Channels == 1 {
		c = Downmix(c)
	}
	if c.Format.Channels != target.Channels {
		return Clip{}, fmt.Errorf("%w: cannot convert %d channels to %d",
			ErrInvalidClip, c.Format.Channels, target.Channels)
	}
	return Resample(c, target.SampleRate)
}

// Silence returns d worth of silent PCM in format f.
func Silence(d time.Duration, f Format) []byte {
	frames := int(d.Seconds() * float64(f.SampleRate))
	return make([]byte, frames*f.FrameSize())
}
