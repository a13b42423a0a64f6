package config

import (
	"fmt"
	"os"

	"q3backend/internal/logging"

	"gopkg.in/yaml.v3"
)

// File mirrors the YAML layout accepted by Load. Pointers distinguish an
// unset key from a zero value.
type File struct {
	LodCurveError     *float32 `yaml:"lodcurveerror"`
	DepthBiasFactor   *float32 `yaml:"depthbiasfactor"`
	RailWidth         *float32 `yaml:"railwidth"`
	RailCoreWidth     *float32 `yaml:"railcorewidth"`
	RailSegmentLength *float32 `yaml:"railsegmentlength"`
	Gamma             *float32 `yaml:"gamma"`
	Brightness        *float32 `yaml:"brightness"`
	Finish            *int     `yaml:"finish"`
	NoBind            *bool    `yaml:"nobind"`
	ShowImages        *int     `yaml:"showimages"`
	DebugSort         *int     `yaml:"debugsort"`
	DynamicLight      *bool    `yaml:"dynamiclight"`
	LogFile           *bool    `yaml:"logfile"`
	Speeds            *bool    `yaml:"speeds"`
	ScreenshotFormat  *string  `yaml:"screenshotformat"`
	ScreenshotDir     *string  `yaml:"screenshotdir"`
	MaxFPS            *int     `yaml:"maxfps"`
	VSync             *bool    `yaml:"vsync"`
}

const maxConfigSize = 1 << 20

// Load reads a YAML settings file and applies every key it sets through
// the clamped setters. A missing file leaves the defaults in place.
func Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Logger().Debug("config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return fmt.Errorf("config file %s too large: %d bytes", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse applies settings from YAML bytes.
func Parse(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	f.Apply()
	return nil
}

// Apply pushes every set field into the global settings.
func (f *File) Apply() {
	if f.LodCurveError != nil {
		SetLodCurveError(*f.LodCurveError)
	}
	if f.DepthBiasFactor != nil {
		SetDepthBiasFactor(*f.DepthBiasFactor)
	}
	if f.RailWidth != nil {
		SetRailWidth(*f.RailWidth)
	}
	if f.RailCoreWidth != nil {
		SetRailCoreWidth(*f.RailCoreWidth)
	}
	if f.RailSegmentLength != nil {
		SetRailSegmentLength(*f.RailSegmentLength)
	}
	if f.Gamma != nil {
		SetGamma(*f.Gamma)
	}
	if f.Brightness != nil {
		SetBrightness(*f.Brightness)
	}
	if f.Finish != nil {
		SetFinish(*f.Finish)
	}
	if f.NoBind != nil {
		SetNoBind(*f.NoBind)
	}
	if f.ShowImages != nil {
		SetShowImages(*f.ShowImages)
	}
	if f.DebugSort != nil {
		SetDebugSort(*f.DebugSort)
	}
	if f.DynamicLight != nil {
		SetDynamicLight(*f.DynamicLight)
	}
	if f.LogFile != nil {
		SetLogFile(*f.LogFile)
	}
	if f.Speeds != nil {
		SetSpeeds(*f.Speeds)
	}
	if f.ScreenshotFormat != nil {
		SetScreenshotFormat(*f.ScreenshotFormat)
	}
	if f.ScreenshotDir != nil {
		SetScreenshotDir(*f.ScreenshotDir)
	}
	if f.MaxFPS != nil {
		SetMaxFPS(*f.MaxFPS)
	}
	if f.VSync != nil {
		SetVSync(*f.VSync)
	}
}

// Snapshot returns the current settings as a File, for logging or saving.
func Snapshot() File {
	g := globalRenderSettings
	g.mu.RLock()
	defer g.mu.RUnlock()
	lod, bias := g.lodCurveError, g.depthBiasFactor
	rw, rcw, rsl := g.railWidth, g.railCoreWidth, g.railSegmentLength
	gamma, bright := g.gamma, g.brightness
	finish, nobind, show, dsort := g.finish, g.noBind, g.showImages, g.debugSort
	dl, lf, speeds := g.dynamicLight, g.logFile, g.speeds
	format, dir := g.screenshotFormat, g.screenshotDir
	maxFPS, vsync := GetMaxFPS(), GetVSync()
	return File{
		LodCurveError:     &lod,
		DepthBiasFactor:   &bias,
		RailWidth:         &rw,
		RailCoreWidth:     &rcw,
		RailSegmentLength: &rsl,
		Gamma:             &gamma,
		Brightness:        &bright,
		Finish:            &finish,
		NoBind:            &nobind,
		ShowImages:        &show,
		DebugSort:         &dsort,
		DynamicLight:      &dl,
		LogFile:           &lf,
		Speeds:            &speeds,
		ScreenshotFormat:  &format,
		ScreenshotDir:     &dir,
		MaxFPS:            &maxFPS,
		VSync:             &vsync,
	}
}
