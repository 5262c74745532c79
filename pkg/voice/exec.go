package voice

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// DefaultSynthesizerBinary is the speech engine ExecSynthesizer runs.
const DefaultSynthesizerBinary = "espeak-ng"

// ExecSynthesizer speaks through the espeak-ng command line.
type ExecSynthesizer struct {
	Binary string

	once   sync.Once
	voices []Voice
	err    error
}

// NewExecSynthesizer returns a synthesizer for binary, or espeak-ng when
// empty. It fails with ErrUnsupported when the binary is not on PATH.
func NewExecSynthesizer(binary string) (*ExecSynthesizer, error) {
	if binary == "" {
		binary = DefaultSynthesizerBinary
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, binary, err)
	}
	return &ExecSynthesizer{Binary: binary}, nil
}

// Voices lists the engine's voices. The catalog is read once.
func (e *ExecSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	e.once.Do(func() {
		out, err := exec.CommandContext(ctx, e.Binary, "--voices").Output()
		if err != nil {
			e.err = fmt.Errorf("list voices: %w", err)
			return
		}
		e.voices = ParseEspeakVoices(string(out))
	})
	return e.voices, e.err
}

// Speak runs the engine and waits for it to finish. Cancelling ctx kills it.
func (e *ExecSynthesizer) Speak(ctx context.Context, u Utterance) error {
	voice := u.Lang
	if u.Voice != nil {
		voice = u.Voice.ID
	}

	args := []string{"--stdin", "-s", strconv.Itoa(wordsPerMinute(u.Rate)), "-p", strconv.Itoa(pitchLevel(u.Pitch))}
	if voice != "" {
		args = append(args, "-v", voice)
	}

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Stdin = strings.NewReader(u.Text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w: %s", e.Binary, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// wordsPerMinute maps a rate multiplier to espeak's speed, 175 wpm at 1.0.
func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return clamp(int(175*rate), 80, 450)
}

// pitchLevel maps a pitch multiplier to espeak's 0-99 scale, 50 at 1.0.
func pitchLevel(pitch float64) int {
	if pitch <= 0 {
		pitch = 1
	}
	return clamp(int(50*pitch), 0, 99)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ParseEspeakVoices parses the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  ru              --/M      Russian            zle/ru
func ParseEspeakVoices(out string) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}

		v := Voice{
			ID:   fields[4],
			Lang: fields[1],
			Name: strings.ReplaceAll(fields[3], "_", " "),
		}
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch strings.ToUpper(g) {
			case "M":
				v.Gender = GenderMale
			case "F":
				v.Gender = GenderFemale
			}
		}
		voices = append(voices, v)
	}
	return voices
}
