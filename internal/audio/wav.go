package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavFormatPCM = 1

// DecodeWAV parses a RIFF/WAVE file holding 16-bit integer PCM. Unknown
// chunks (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidClip)
	}

	var (
		format  Format
		haveFmt bool
		pcm     []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Some encoders write a bogus data size when streaming.
			if id == "data" {
				end = len(data)
			} else {
				return Clip{}, fmt.Errorf("%w: chunk %q overruns file", ErrInvalidClip, id)
			}
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidClip)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			if audioFormat != wavFormatPCM {
				return Clip{}, fmt.Errorf("%w: unsupported WAV encoding %d", ErrInvalidClip, audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			format.BitDepth = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		// Chunks are word aligned.
		pos = end + (end-body)%2
	}

	if !haveFmt {
		return Clip{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidClip)
	}
	if pcm == nil {
		return Clip{}, fmt.Errorf("%w: missing data chunk", ErrInvalidClip)
	}

	clip := Clip{Format: format, Data: pcm}
	if fs := format.FrameSize(); fs > 0 && len(pcm)%fs != 0 {
		clip.Data = pcm[:len(pcm)-len(pcm)%fs]
	}
	if err := clip.Validate(); err != nil {
		return Clip{}, err
	}
	return clip, nil
}

// EncodeWAV wraps a clip in a canonical 44-byte RIFF header.
func EncodeWAV(c Clip) []byte {
	var buf bytes.Buffer
	blockAlign := c.Format.FrameSize()
	byteRate := c.Format.SampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(c.Data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(c.Format.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(c.Format.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(c.Format.BitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(c.Data)))
	buf.Write(c.Data)

	return buf.Bytes()
}
