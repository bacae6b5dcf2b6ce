// linne-codec is a command-line front end for the LINNE lossless audio
// codec: it encodes a WAV file into a LINNE stream or decodes a LINNE
// stream back into a WAV file. Grounded on the teacher's cmd/wav2flac
// (flag-based argument parsing, go-audio/wav + go-audio/audio for PCM
// I/O, github.com/pkg/errors for stack-annotated error reporting).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/linne-codec/linne"
	"github.com/linne-codec/linne/block"
	"github.com/linne-codec/linne/preset"
)

const version = "linne-codec 0.1.0"

func main() {
	var (
		doEncode       bool
		doDecode       bool
		mode           uint
		enableLearning bool
		afIterations   int
		noCRCCheck     bool
		showHelp       bool
		showVersion    bool
		verbose        bool
	)
	flag.BoolVar(&doEncode, "encode", false, "encode input_path (WAV) into output_path (LINNE)")
	flag.BoolVar(&doDecode, "decode", false, "decode input_path (LINNE) into output_path (WAV)")
	flag.UintVar(&mode, "mode", 0, "encode preset index (0..P-1)")
	flag.BoolVar(&enableLearning, "enable-learning", false, "fine-tune layer coefficients with gradient training after the auxiliary-function fit")
	flag.IntVar(&afIterations, "auxiliary-function-iteration", 4, "auxiliary-function solver iteration budget")
	flag.BoolVar(&noCRCCheck, "no-crc-check", false, "skip per-block CRC-16 validation when decoding")
	flag.BoolVar(&showHelp, "help", false, "show usage and exit")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.BoolVar(&verbose, "verbose", false, "log each block's chosen type and byte cost")
	flag.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(doEncode, doDecode, mode, enableLearning, afIterations, noCRCCheck, verbose, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(doEncode, doDecode bool, mode uint, enableLearning bool, afIterations int, noCRCCheck, verbose bool, args []string) error {
	if doEncode == doDecode {
		return errors.New("exactly one of --encode or --decode is required")
	}
	if len(args) != 2 {
		return errors.Errorf("want input_path output_path, got %d positional arguments", len(args))
	}
	inPath, outPath := args[0], args[1]

	if doEncode {
		if _, ok := preset.ByIndex(uint32(mode)); !ok {
			return errors.Errorf("--mode %d does not name a known preset", mode)
		}
		return encodeWAVToLINNE(inPath, outPath, uint8(mode), enableLearning, afIterations, verbose)
	}
	return decodeLINNEToWAV(inPath, outPath, noCRCCheck)
}

// countingWriter tracks cumulative bytes written, used only to report each
// block's byte cost under --verbose.
type countingWriter struct {
	w     *os.File
	total int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.total += int64(n)
	return n, err
}

// encodeWAVToLINNE reads a WAV file, derives a LINNE header from its PCM
// format, and writes the encoded stream to outPath.
func encodeWAVToLINNE(inPath, outPath string, presetIndex uint8, enableLearning bool, afIterations int, verbose bool) error {
	r, err := os.Open(inPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return errors.Errorf("invalid WAV file %q", inPath)
	}
	if err := dec.FwdToPCM(); err != nil {
		return errors.WithStack(err)
	}
	nchannels := int(dec.NumChans)
	bps := int(dec.BitDepth)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: nchannels, SampleRate: int(dec.SampleRate)},
		Data:           make([]int, 4096*nchannels),
		SourceBitDepth: bps,
	}
	pcm := make([][]int32, nchannels)
	for !dec.EOF() {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			c := i % nchannels
			pcm[c] = append(pcm[c], int32(buf.Data[i]))
		}
	}
	if len(pcm) == 0 || len(pcm[0]) == 0 {
		return errors.Errorf("WAV file %q contains no PCM samples", inPath)
	}

	chMethod := linne.ChannelProcessPassthrough
	if nchannels >= 2 {
		chMethod = linne.ChannelProcessMidSide
	}
	h := &linne.Header{
		FormatVersion:        1,
		CodecVersion:         1,
		ChannelCount:         uint16(nchannels),
		TotalSamplesPerChan:  uint32(len(pcm[0])),
		SamplingRate:         uint32(dec.SampleRate),
		BitsPerSample:        uint16(bps),
		SamplesPerBlock:      4096,
		PresetIndex:          presetIndex,
		ChannelProcessMethod: chMethod,
	}

	f, err := os.Create(outPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	w := &countingWriter{w: f}

	enc := linne.NewEncoder()
	enc.SetEnableLearning(enableLearning)
	enc.SetNumAFIterations(afIterations)
	if err := enc.SetParameters(h); err != nil {
		return errors.WithStack(err)
	}
	p, _ := preset.ByIndex(uint32(presetIndex))

	total := h.TotalSamplesPerChan
	for start := uint32(0); start < total; start += h.SamplesPerBlock {
		end := start + h.SamplesPerBlock
		if end > total {
			end = total
		}
		chunk := make([][]int32, len(pcm))
		for c, ch := range pcm {
			chunk[c] = ch[start:end]
		}
		before := w.total
		if err := enc.EncodeBlock(w, chunk); err != nil {
			return errors.WithStack(err)
		}
		if verbose {
			logChunk := chunk
			if chMethod == linne.ChannelProcessMidSide {
				m := make([]int32, len(chunk[0]))
				s := make([]int32, len(chunk[0]))
				for i := range chunk[0] {
					m[i], s[i] = block.MSEncode(chunk[0][i], chunk[1][i])
				}
				logChunk = [][]int32{m, s}
			}
			typ := block.DecideType(logChunk, int(p.LayerParamCounts[0]), uint(bps))
			log.Printf("block [%d,%d): type=%v bytes=%d", start, end, typ, w.total-before)
		}
	}
	return nil
}

// decodeLINNEToWAV reads a LINNE stream and writes it out as a WAV file
// matching the stream header's sample rate, channel count and bit depth.
func decodeLINNEToWAV(inPath, outPath string, noCRCCheck bool) error {
	r, err := os.Open(inPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	dec := linne.NewDecoder(noCRCCheck)
	h, pcm, err := dec.DecodeWhole(r)
	if err != nil {
		return errors.WithStack(err)
	}

	w, err := os.Create(outPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	enc := wav.NewEncoder(w, int(h.SamplingRate), int(h.BitsPerSample), int(h.ChannelCount), 1)
	defer enc.Close()

	nchannels := int(h.ChannelCount)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: nchannels, SampleRate: int(h.SamplingRate)},
		Data:           make([]int, len(pcm[0])*nchannels),
		SourceBitDepth: int(h.BitsPerSample),
	}
	for i := range pcm[0] {
		for c := 0; c < nchannels; c++ {
			buf.Data[i*nchannels+c] = int(pcm[c][i])
		}
	}
	if err := enc.Write(buf); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
