package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// pactlFunc runs pactl with args and returns its stdout.
type pactlFunc func(ctx context.Context, args ...string) ([]byte, error)

func execPactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// Ducker fades every PulseAudio sink input except our own while the
// microphone is open, and restores them afterwards.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string    // application.name values left alone
	originalVol map[int]int // sink input id -> volume before ducking
	minVolume   int
	pactl       pactlFunc
	step        time.Duration
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	return &Ducker{
		selfNames:   slices.Clone(selfNames),
		originalVol: make(map[int]int),
		minVolume:   min(max(minVolume, 0), maxVolume),
		pactl:       execPactl,
		step:        10 * time.Millisecond,
	}
}

// DuckOthers fades foreign streams to current*factor, never below the
// configured minimum. Ducking twice is a no-op.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget
	for _, s := range streams {
		if slices.Contains(d.selfNames, s.AppName) {
			continue
		}
		to := int(math.Round(float64(s.Volume) * factor))
		to = min(max(to, d.minVolume), maxVolume)

		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: to})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}
	d.active = true
	return nil
}

// UnduckOthers fades ducked streams back. Streams that appeared after
// ducking are not touched.
func (d *Ducker) UnduckOthers(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || slices.Contains(d.selfNames, s.AppName) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}
	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	steps := max(int(duration/d.step), 1)
	if duration <= 0 {
		steps = 0
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.setVolume(ctx, t.id, v); err != nil {
				return err
			}
		}

		if i < steps {
			time.Sleep(duration / time.Duration(steps))
		}
	}
	return nil
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.pactl(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	percent = min(max(percent, 0), maxVolume)
	if _, err := d.pactl(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent)); err != nil {
		return fmt.Errorf("set volume id=%d: %w", id, err)
	}
	return nil
}

// parseSinkInputs reads `pactl list sink-inputs` output.
func parseSinkInputs(text string) []streamInfo {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []streamInfo
	for _, block := range blocks[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			// application.name = "Firefox"
			if rest, ok := strings.CutPrefix(line, "application.name ="); ok && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}
