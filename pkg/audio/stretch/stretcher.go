// ABOUTME: Streaming time-stretcher with live tempo changes
// ABOUTME: Sequences are aligned by cross-correlation and crossfaded
package stretch

import "math"

const (
	sequenceMS = 40
	overlapMS  = 8
	seekMS     = 15

	// MinTempo and MaxTempo bound the stretch factor
	MinTempo = 0.1
	MaxTempo = 10.0
)

// Stretcher time-stretches interleaved float32 audio. It is not safe for
// concurrent use.
type Stretcher struct {
	channels int
	seqLen   int
	ovlLen   int
	seekLen  int

	tempo     float64
	skipFract float64

	input   []float32
	inRead  int // frames already skipped in input
	output  []float32
	outRead int // frames already received from output
	mid     []float32
	silence []float32 // padding appended on flush

	started  bool
	flushing bool
	realLeft int // real input frames left once flushing
	finished bool
}

// New creates a stretcher for the given stream format at tempo 1.0
func New(sampleRate, channels int) *Stretcher {
	s := &Stretcher{
		channels: channels,
		seqLen:   sampleRate * sequenceMS / 1000,
		ovlLen:   sampleRate * overlapMS / 1000,
		seekLen:  sampleRate * seekMS / 1000,
		tempo:    1.0,
	}
	if s.ovlLen < 1 {
		s.ovlLen = 1
	}
	if s.seqLen < 2*s.ovlLen {
		s.seqLen = 2 * s.ovlLen
	}
	if s.seekLen < 1 {
		s.seekLen = 1
	}
	s.mid = make([]float32, s.ovlLen*channels)
	s.silence = make([]float32, s.maxRequired()*channels)
	s.input = make([]float32, 0, s.maxRequired()*3*channels)
	s.output = make([]float32, 0, s.seqLen*4*channels)
	return s
}

// SetTempo sets the stretch factor: 2.0 plays twice as fast. Values are
// clamped to [MinTempo, MaxTempo].
func (s *Stretcher) SetTempo(tempo float64) {
	if math.IsNaN(tempo) {
		return
	}
	s.tempo = math.Max(MinTempo, math.Min(MaxTempo, tempo))
}

// Tempo returns the current stretch factor
func (s *Stretcher) Tempo() float64 {
	return s.tempo
}

// Put appends interleaved input and processes as many sequences as the
// buffered input allows.
func (s *Stretcher) Put(samples []float32) {
	if s.flushing {
		return
	}
	s.appendInput(samples)
	s.process()
}

// Flush marks the end of input. Remaining input is processed and output
// ends where the real input ends.
func (s *Stretcher) Flush() {
	if s.flushing {
		return
	}
	s.flushing = true
	s.realLeft = s.inputFrames()
	if s.started {
		s.appendInput(s.silence)
	}
	s.process()
}

// Available returns the number of output frames ready to receive
func (s *Stretcher) Available() int {
	return len(s.output)/s.channels - s.outRead
}

// Receive copies up to len(dst)/channels frames of output into dst and
// returns the number of frames written.
func (s *Stretcher) Receive(dst []float32) int {
	n := len(dst) / s.channels
	if avail := s.Available(); n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	ch := s.channels
	copy(dst[:n*ch], s.output[s.outRead*ch:(s.outRead+n)*ch])
	s.outRead += n
	if s.outRead*ch == len(s.output) {
		s.output = s.output[:0]
		s.outRead = 0
	}
	return n
}

// Done reports whether the stream was flushed and all output received
func (s *Stretcher) Done() bool {
	return s.finished && s.Available() == 0
}

func (s *Stretcher) inputFrames() int {
	return len(s.input)/s.channels - s.inRead
}

// maxRequired is the largest input window one sequence can need
func (s *Stretcher) maxRequired() int {
	maxSkip := int(math.Ceil(MaxTempo*float64(s.seqLen-s.ovlLen))) + 1
	req := maxSkip + s.ovlLen
	if req < s.seqLen {
		req = s.seqLen
	}
	return req + s.seekLen
}

func (s *Stretcher) appendInput(samples []float32) {
	if s.inRead > 0 && len(s.input)+len(samples) > cap(s.input) {
		remaining := copy(s.input, s.input[s.inRead*s.channels:])
		s.input = s.input[:remaining]
		s.inRead = 0
	}
	s.input = append(s.input, samples...)
}

func (s *Stretcher) process() {
	ch := s.channels
	for !s.finished {
		if s.flushing && s.realLeft <= 0 {
			s.finish()
			return
		}

		skip := s.tempo * float64(s.seqLen-s.ovlLen)
		intSkip := int(skip + s.skipFract)
		need := intSkip + s.ovlLen
		if need < s.seqLen {
			need = s.seqLen
		}
		need += s.seekLen

		if s.inputFrames() < need {
			if s.flushing {
				s.finish()
			}
			return
		}

		in := s.input[s.inRead*ch:]
		before := len(s.output)
		offset := 0
		if s.started {
			offset = s.seekBestOverlap(in)
			s.crossfade(in[offset*ch : (offset+s.ovlLen)*ch])
		} else {
			s.output = append(s.output, in[:s.ovlLen*ch]...)
			s.started = true
		}

		s.output = append(s.output, in[(offset+s.ovlLen)*ch:(offset+s.seqLen-s.ovlLen)*ch]...)
		copy(s.mid, in[(offset+s.seqLen-s.ovlLen)*ch:(offset+s.seqLen)*ch])

		// Output maps 1:1 onto input inside a sequence, so the final
		// sequence is cut where the real input ends.
		if s.flushing {
			if real := s.realLeft - offset; real <= s.seqLen-s.ovlLen {
				if real < 0 {
					real = 0
				}
				s.output = s.output[:before+real*ch]
				s.realLeft = 0
				s.finished = true
				return
			}
		}

		s.skipFract += skip
		n := int(s.skipFract)
		s.skipFract -= float64(n)
		s.inRead += n
		if s.flushing {
			s.realLeft -= n
		}
	}
}

// finish releases input too short to form a single sequence
func (s *Stretcher) finish() {
	if !s.started && s.realLeft > 0 {
		ch := s.channels
		s.output = append(s.output, s.input[s.inRead*ch:(s.inRead+s.realLeft)*ch]...)
		s.inRead += s.realLeft
	}
	s.realLeft = 0
	s.finished = true
}

// seekBestOverlap finds the offset in [0, seekLen) whose overlap region
// correlates best with the previous sequence's tail.
func (s *Stretcher) seekBestOverlap(in []float32) int {
	span := s.ovlLen * s.channels
	best := math.Inf(-1)
	bestOffset := 0
	for offset := 0; offset < s.seekLen; offset++ {
		seg := in[offset*s.channels : offset*s.channels+span]
		var corr, norm float64
		for i, v := range seg {
			corr += float64(s.mid[i] * v)
			norm += float64(v * v)
		}
		score := corr / math.Sqrt(norm+1e-9)
		if score > best {
			best = score
			bestOffset = offset
		}
	}
	return bestOffset
}

func (s *Stretcher) crossfade(next []float32) {
	ch := s.channels
	scale := 1.0 / float32(s.ovlLen)
	for i := 0; i < s.ovlLen; i++ {
		w := float32(i) * scale
		for c := 0; c < ch; c++ {
			j := i*ch + c
			s.output = append(s.output, s.mid[j]*(1-w)+next[j]*w)
		}
	}
}
