// Package config provides configuration loading and management for stedalign.
// It handles loading configuration from YAML files and provides default values
// for the optical system, the numerical simulation grid, the hardware session
// and the regression model descriptor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpticalParams describes the physical optical system. The struct is
// immutable for the lifetime of a backend once passed at construction.
type OpticalParams struct {
	// LaserPower is the average depletion laser power in W
	LaserPower float64 `yaml:"laserPower"`

	// RepRate is the pulse repetition rate in Hz
	RepRate float64 `yaml:"repRate"`

	// PulseLength is the laser pulse duration in s
	PulseLength float64 `yaml:"pulseLength"`

	// Wavelength is the depletion wavelength in m
	Wavelength float64 `yaml:"wavelength"`

	// NA is the numerical aperture of the objective
	NA float64 `yaml:"na"`

	// RefractiveIndex is the immersion medium refractive index
	RefractiveIndex float64 `yaml:"refractiveIndex"`

	// PixelSize is the physical size of one image pixel in m,
	// used to convert centroid displacements into stage moves
	PixelSize float64 `yaml:"pixelSize"`

	// ScanOffset is the (x, y, z) offset of the scan region in m
	ScanOffset [3]float64 `yaml:"scanOffset"`
}

// NumericalParams describes the simulation grid and the Zernike basis.
type NumericalParams struct {
	// InputRes is the side length of the simulated pupil/phase-mask grid.
	// Synthesis happens at twice this resolution before cropping.
	InputRes int `yaml:"inputRes"`

	// WorkingRes is the side length every acquired or simulated plane is
	// preprocessed to before being handed to the model
	WorkingRes int `yaml:"workingRes"`

	// AxialRange is the half-extent of the axial (z) scan in m used for
	// the xz and yz cross sections
	AxialRange float64 `yaml:"axialRange"`

	// Orders lists the (n, m) radial/azimuthal order of every Zernike
	// mode. The first three entries are tip, tilt and defocus, which are
	// excluded from aberration synthesis; the remaining eleven pair with
	// the entries of an AberrationVector.
	Orders [][2]int `yaml:"orders"`
}

// HardwareParams describes the instrument session: which measurement
// configurations and capture channels map to each plane, and the settle
// delays around a live acquisition.
type HardwareParams struct {
	// ConfigNames maps plane name (xy, xz, yz) to the measurement
	// configuration name inside the instrument session
	ConfigNames map[string]string `yaml:"configNames"`

	// ChannelNames maps plane name to the capture channel (stack window)
	// read back after a pause
	ChannelNames map[string]string `yaml:"channelNames"`

	// SettleSeconds is the delay between starting the live acquisition
	// and pausing it to read a frame
	SettleSeconds float64 `yaml:"settleSeconds"`

	// ReadbackSeconds is the shorter delay after reading a frame before
	// the call returns
	ReadbackSeconds float64 `yaml:"readbackSeconds"`
}

// Settle returns the acquisition settle delay as a duration.
func (h HardwareParams) Settle() time.Duration {
	return time.Duration(h.SettleSeconds * float64(time.Second))
}

// Readback returns the post-read delay as a duration.
func (h HardwareParams) Readback() time.Duration {
	return time.Duration(h.ReadbackSeconds * float64(time.Second))
}

// ModelDescriptor enumerates what a loaded regression model consumes and
// produces. It is supplied by the caller alongside the model handle.
type ModelDescriptor struct {
	// MultiChannel is true when the model consumes the 3-plane stack
	// rather than the primary plane alone
	MultiChannel bool `yaml:"multiChannel"`

	// ZernikeOutput is true when the model emits the 11 mode weights
	ZernikeOutput bool `yaml:"zernikeOutput"`

	// OffsetOutput is true when the model emits the 2 sub-pixel offsets
	OffsetOutput bool `yaml:"offsetOutput"`

	// Resolution is the square input resolution the model was trained at
	Resolution int `yaml:"resolution"`

	// Concat selects the concatenating variant of the network
	Concat bool `yaml:"concat"`
}

// OutputWidth returns the total output width of one forward pass implied by
// the descriptor flags.
func (d ModelDescriptor) OutputWidth() int {
	w := 0
	if d.ZernikeOutput {
		w += 11
	}
	if d.OffsetOutput {
		w += 2
	}
	return w
}

// InputChannels returns the number of image channels the model consumes.
func (d ModelDescriptor) InputChannels() int {
	if d.MultiChannel {
		return 3
	}
	return 1
}

// Config represents the application configuration loaded from YAML
type Config struct {
	Optical   OpticalParams   `yaml:"optical"`
	Numerical NumericalParams `yaml:"numerical"`
	Hardware  HardwareParams  `yaml:"hardware"`
	Model     ModelDescriptor `yaml:"model"`
}

// DefaultConfig returns a configuration with default values matching a
// 775 nm depletion path on an oil-immersion objective.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Optical.LaserPower = 0.125
	cfg.Optical.RepRate = 40e6
	cfg.Optical.PulseLength = 700e-12
	cfg.Optical.Wavelength = 775e-9
	cfg.Optical.NA = 1.4
	cfg.Optical.RefractiveIndex = 1.518
	cfg.Optical.PixelSize = 10e-9
	cfg.Optical.ScanOffset = [3]float64{0, 0, 0}

	cfg.Numerical.InputRes = 64
	cfg.Numerical.WorkingRes = 64
	cfg.Numerical.AxialRange = 1e-6
	cfg.Numerical.Orders = DefaultOrders()

	cfg.Hardware.ConfigNames = map[string]string{
		"xy": "xy2d",
		"xz": "xz2d",
		"yz": "yz2d",
	}
	cfg.Hardware.ChannelNames = map[string]string{
		"xy": "ExpControl Ch1 {1}",
		"xz": "ExpControl Ch1 {13}",
		"yz": "ExpControl Ch1 {15}",
	}
	cfg.Hardware.SettleSeconds = 3.0
	cfg.Hardware.ReadbackSeconds = 0.5

	cfg.Model.MultiChannel = true
	cfg.Model.ZernikeOutput = true
	cfg.Model.OffsetOutput = true
	cfg.Model.Resolution = 64
	cfg.Model.Concat = false

	return cfg
}

// DefaultOrders returns the standard (n, m) Zernike ordering used by the
// synthesis and training code: tip, tilt and defocus first, then the eleven
// aberration modes from oblique astigmatism through quadrafoil.
func DefaultOrders() [][2]int {
	return [][2]int{
		{1, -1}, {1, 1}, {2, 0},
		{2, -2}, {2, 2},
		{3, -1}, {3, 1}, {3, -3}, {3, 3},
		{4, 0}, {4, -2}, {4, 2}, {4, -4}, {4, 4},
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
