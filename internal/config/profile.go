package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/scanline/internal/model"
)

// Profile describes the capture device: which hardware it has, where its
// frames come from, and how feedback is produced.
type Profile struct {
	Name           string   `toml:"name"`
	HasFlash       bool     `toml:"has_flash"`
	HasVibrator    bool     `toml:"has_vibrator"`
	FramesDir      string   `toml:"frames_dir"`
	FrameInterval  string   `toml:"frame_interval"`
	Rotation       int      `toml:"rotation"`
	PreviewWidth   int      `toml:"preview_width"`
	PreviewHeight  int      `toml:"preview_height"`
	Formats        []string `toml:"formats"`
	TryHarder      bool     `toml:"try_harder"`
	BeepCommand    string   `toml:"beep_command,omitempty"`
	HapticCommand  string   `toml:"haptic_command,omitempty"`
	CommandTimeout string   `toml:"command_timeout,omitempty"`
}

// DefaultProfile is a virtual camera with a flash unit and no vibrator.
func DefaultProfile() Profile {
	formats := make([]string, len(model.DefaultFormats))
	for i, f := range model.DefaultFormats {
		formats[i] = f.String()
	}
	return Profile{
		Name:           "virtual",
		HasFlash:       true,
		FramesDir:      "frames",
		FrameInterval:  "100ms",
		PreviewWidth:   1280,
		PreviewHeight:  720,
		Formats:        formats,
		TryHarder:      true,
		CommandTimeout: "2s",
	}
}

// LoadProfile reads a TOML profile over the defaults. An empty path returns
// the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("reading profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// SaveProfile writes p to path, creating parent directories.
func SaveProfile(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}

// Validate checks the fields that need parsing.
func (p Profile) Validate() error {
	var errs []error
	switch p.Rotation {
	case 0, 90, 180, 270:
	default:
		errs = append(errs, fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", p.Rotation))
	}
	if d, err := time.ParseDuration(p.FrameInterval); err != nil {
		errs = append(errs, fmt.Errorf("frame_interval: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("frame_interval must be positive, got %v", d))
	}
	if p.CommandTimeout != "" {
		if _, err := time.ParseDuration(p.CommandTimeout); err != nil {
			errs = append(errs, fmt.Errorf("command_timeout: %w", err))
		}
	}
	if p.PreviewWidth < 0 || p.PreviewHeight < 0 {
		errs = append(errs, errors.New("preview size must not be negative"))
	}
	if _, err := p.ParsedFormats(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Interval returns the frame interval, falling back to 100ms.
func (p Profile) Interval() time.Duration {
	d, err := time.ParseDuration(p.FrameInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// Timeout returns the feedback command timeout, or zero for the default.
func (p Profile) Timeout() time.Duration {
	d, _ := time.ParseDuration(p.CommandTimeout)
	return d
}

// ParsedFormats returns the enabled formats, or the defaults when none are
// listed.
func (p Profile) ParsedFormats() ([]model.Format, error) {
	if len(p.Formats) == 0 {
		return model.DefaultFormats, nil
	}
	out := make([]model.Format, 0, len(p.Formats))
	for _, s := range p.Formats {
		f, err := model.ParseFormat(s)
		if err != nil {
			return nil, fmt.Errorf("formats: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}
